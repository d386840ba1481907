// Standard attribute keys for explainer operations.
//
// Using these keys consistently makes training logs filterable: every epoch
// record carries the same "training.*" keys, every shape mismatch the same
// "data.*" keys. The keys follow a hierarchical naming convention
// (e.g. "training.epoch", "data.features").
package log

// Model and operation context.
const (
	// ModelNameKey identifies the explainer variant.
	// Examples: "Classifier", "RiskEstimator", "CV"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "train", "explain", "build_target"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "mask", "nn", "invase"
	ComponentKey = "ml.component"

	// StrategyKey records the target-builder strategy in use.
	// Values: "exhaustive", "batched"
	StrategyKey = "ml.strategy"
)

// Data shape and characteristics.
const (
	// SamplesKey indicates the number of instances (rows) being processed.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// HorizonsKey indicates the number of evaluation horizons for
	// risk-estimation tasks.
	HorizonsKey = "data.horizons"

	// BatchSizeKey indicates the mini-batch size during training.
	BatchSizeKey = "data.batch_size"
)

// Training progress.
const (
	// EpochKey records the current training epoch.
	EpochKey = "training.epoch"

	// TrainLossKey records the mean importance-regression loss over the
	// epoch's mini-batches.
	TrainLossKey = "training.loss"

	// ValLossKey records the validation MSE at the last evaluation point.
	ValLossKey = "training.val_loss"

	// PatienceKey records the current early-stopping patience counter.
	PatienceKey = "training.patience"

	// FoldKey records the fold index during cross-validated ensemble
	// training.
	FoldKey = "training.fold"
)
