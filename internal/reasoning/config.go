package reasoning

// Config tunes the Sona Engine's route-weight update protocol, drift
// guard, and checkpoint ring (spec.md §4.11).
type Config struct {
	// LearningRate (eta) scales the reward term of each weight update.
	LearningRate float64
	// Regularization (lambda) pulls weight back toward its initial value,
	// the Fisher-regularization term.
	Regularization float64
	WeightMin      float64
	WeightMax      float64
	InitWeight     float64

	// AlertThreshold logs a warning when |candidate - checkpoint| crosses
	// it; RejectThreshold rejects the update outright.
	AlertThreshold  float64
	RejectThreshold float64

	// FisherDecay is the exponential-moving-average decay applied to the
	// per-route Fisher information estimate on every accepted update.
	FisherDecay float64

	// QualityFloor gates a trajectory's inclusion in weight updates (per
	// the recorded Open Question decision); trajectory creation is never
	// gated. Feedback below this quality still records the
	// trajectory's quality and marks it Low-confidence, but is excluded
	// from the weight update.
	QualityFloor float64

	MaxCheckpoints      int
	CheckpointInterval  int // steps between automatic checkpoints
	RollbackWindowSteps int // steps within which a repeated restore counts toward a rollback loop
	RollbackLoopCount   int // restores of the same checkpoint within the window that trigger ErrRollbackLoop
}

func (c Config) withDefaults() Config {
	if c.LearningRate == 0 {
		c.LearningRate = 0.1
	}
	if c.Regularization == 0 {
		c.Regularization = 0.01
	}
	if c.WeightMin == 0 && c.WeightMax == 0 {
		c.WeightMin, c.WeightMax = 0.0, 2.0
	}
	if c.InitWeight == 0 {
		c.InitWeight = 1.0
	}
	if c.AlertThreshold == 0 {
		c.AlertThreshold = 0.3
	}
	if c.RejectThreshold == 0 {
		c.RejectThreshold = 0.5
	}
	if c.FisherDecay == 0 {
		c.FisherDecay = 0.99
	}
	if c.QualityFloor == 0 {
		c.QualityFloor = 0.3
	}
	if c.MaxCheckpoints == 0 {
		c.MaxCheckpoints = 10
	}
	if c.CheckpointInterval == 0 {
		c.CheckpointInterval = 20
	}
	if c.RollbackWindowSteps == 0 {
		c.RollbackWindowSteps = 15
	}
	if c.RollbackLoopCount == 0 {
		c.RollbackLoopCount = 3
	}
	return c
}
