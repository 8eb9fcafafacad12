package build

import (
	"context"
	"fmt"

	"github.com/sdforge/sdforge/src/sdforge/source"
)

// FetchStage clones the source repositories the build needs.
type FetchStage struct{}

// NewFetchStage creates a new fetch stage
func NewFetchStage() *FetchStage {
	return &FetchStage{}
}

// Name returns the stage name
func (s *FetchStage) Name() StageName {
	return StageFetch
}

// Validate checks whether this stage can run
func (s *FetchStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.ReposDir == "" {
		return fmt.Errorf("repositories directory not set")
	}
	if len(sc.Profile.Repositories) == 0 {
		return fmt.Errorf("board profile lists no repositories")
	}
	return nil
}

// Execute provides every missing source tree, from a configured tarball
// mirror when one exists and a git clone otherwise.
func (s *FetchStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	fetcher := source.NewFetcher(sc.Runner, sc.ReposDir)

	total := len(sc.Profile.Repositories)
	for i, repo := range sc.Profile.Repositories {
		progress(100*i/total, fmt.Sprintf("Fetching %s", repo.Name))

		if mirror, ok := sc.Mirrors[repo.Name]; ok {
			if err := fetcher.EnsureFromArchive(ctx, repo.Name, mirror); err != nil {
				return err
			}
			continue
		}
		if err := fetcher.EnsureRepositories(ctx, sc.Profile.Repositories[i:i+1]); err != nil {
			return err
		}
	}

	progress(100, "All source trees present")
	return nil
}
