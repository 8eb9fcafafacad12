package build

// DefaultStages returns the ordered pipeline for a full card build.
// The caller passes these to NewPipeline.
func DefaultStages() []Stage {
	return []Stage{
		NewPreflightStage(),
		NewFetchStage(),
		NewFirmwareStage(),
		NewKernelStage(),
		NewPartitionStage(),
		NewRootfsStage(),
		NewInstallStage(),
		NewTeardownStage(),
	}
}
