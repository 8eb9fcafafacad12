package build

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/common/paths"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

// FirmwareStage builds the secure firmware (TF-A bl31) and the U-Boot SPL
// image that carries it. Both builds are skipped when their artifact is
// already present from a previous run.
type FirmwareStage struct{}

// NewFirmwareStage creates a new firmware stage
func NewFirmwareStage() *FirmwareStage {
	return &FirmwareStage{}
}

// Name returns the stage name
func (s *FirmwareStage) Name() StageName {
	return StageFirmware
}

// Validate checks whether this stage can run
func (s *FirmwareStage) Validate(ctx context.Context, sc *StageContext) error {
	for _, repo := range []string{"arm-trusted-firmware", "u-boot"} {
		dir := filepath.Join(sc.ReposDir, repo)
		if !sc.Runner.DryRun() && !paths.IsDir(dir) {
			return fmt.Errorf("%s checkout missing at %s - fetch stage must run first", repo, dir)
		}
	}
	return nil
}

// bl31Path returns the TF-A build output consumed by the U-Boot build.
func (s *FirmwareStage) bl31Path(sc *StageContext) string {
	return filepath.Join(sc.ReposDir, "arm-trusted-firmware", "build", sc.Profile.ATFPlatform, "debug", "bl31.bin")
}

// SPLPath returns the U-Boot SPL image written raw to the card.
func SPLPath(sc *StageContext) string {
	return filepath.Join(sc.ReposDir, "u-boot", sc.Profile.SPLImage)
}

// Execute builds bl31 and then the SPL image.
func (s *FirmwareStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	progress(0, "Building trusted firmware")
	if err := s.buildBL31(ctx, sc); err != nil {
		return err
	}

	progress(50, "Building U-Boot SPL")
	if err := s.buildUBoot(ctx, sc); err != nil {
		return err
	}

	progress(100, "Bootloader artifacts ready")
	return nil
}

func (s *FirmwareStage) buildBL31(ctx context.Context, sc *StageContext) error {
	if paths.Exists(s.bl31Path(sc)) {
		log.Info("bl31.bin already built, skipping", "path", s.bl31Path(sc))
		return nil
	}

	cmd := runner.Command{
		Argv: []string{
			"make",
			"CROSS_COMPILE=" + sc.Profile.CrossCompile,
			"PLAT=" + sc.Profile.ATFPlatform,
			"DEBUG=1",
			"bl31",
		},
		Dir: filepath.Join(sc.ReposDir, "arm-trusted-firmware"),
	}
	if err := sc.Runner.Run(ctx, cmd); err != nil {
		return errors.ErrFirmwareBuild.WithMessage("TF-A bl31 build failed").WithCause(err)
	}
	return nil
}

func (s *FirmwareStage) buildUBoot(ctx context.Context, sc *StageContext) error {
	if paths.Exists(SPLPath(sc)) {
		log.Info("U-Boot SPL already built, skipping", "path", SPLPath(sc))
		return nil
	}

	// bl31 sits one tree over; U-Boot's makefile takes it as BL31=
	bl31 := filepath.Join("..", "arm-trusted-firmware", "build", sc.Profile.ATFPlatform, "debug", "bl31.bin")
	ubootDir := filepath.Join(sc.ReposDir, "u-boot")

	configure := runner.Command{
		Argv: []string{
			"make",
			"CROSS_COMPILE=" + sc.Profile.CrossCompile,
			"BL31=" + bl31,
			sc.Profile.UBootDefconfig,
		},
		Dir: ubootDir,
	}
	if err := sc.Runner.Run(ctx, configure); err != nil {
		return errors.ErrFirmwareBuild.WithMessage("U-Boot configuration failed").WithCause(err)
	}

	compile := runner.Command{
		Argv: []string{
			"make",
			"CROSS_COMPILE=" + sc.Profile.CrossCompile,
			"BL31=" + bl31,
		},
		Dir: ubootDir,
	}
	if err := sc.Runner.Run(ctx, compile); err != nil {
		return errors.ErrFirmwareBuild.WithMessage("U-Boot build failed").WithCause(err)
	}
	return nil
}
