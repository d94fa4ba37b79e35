// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

// Strategy names the sharding backend of an actor.
type Strategy string

const (
	StrategyFSDP     Strategy = "fsdp"
	StrategyFSDP2    Strategy = "fsdp2"
	StrategyMegatron Strategy = "megatron"
	StrategyDDP      Strategy = "ddp"
)

// Strategies lists every accepted strategy.
var Strategies = []string{
	string(StrategyFSDP),
	string(StrategyFSDP2),
	string(StrategyMegatron),
	string(StrategyDDP),
}

// Warmup styles of the learning rate schedule.
const (
	WarmupConstant = "constant"
	WarmupCosine   = "cosine"
)

// LossAggModes lists the accepted loss aggregation modes.
var LossAggModes = []string{"token-mean", "seq-mean-token-sum", "seq-mean-token-mean", "seq-mean-token-sum-norm"}

// KLLossTypes lists the accepted KL estimators.
var KLLossTypes = []string{"kl", "k1", "abs", "mse", "k2", "low_var_kl", "k3", "full"}

// CheckpointContents lists what a checkpoint may save or load.
var CheckpointContents = []string{"model", "optimizer", "extra", "hf_model"}

// AutoFSDPSize asks the consumer to shard across the whole world.
const AutoFSDPSize = -1

// ActorConfig holds the fields every actor strategy shares.
type ActorConfig struct {
	Target   string   `yaml:"_target_"`
	Strategy Strategy `yaml:"strategy"`

	PPOMiniBatchSize        int  `yaml:"ppo_mini_batch_size"`
	PPOMicroBatchSize       *int `yaml:"ppo_micro_batch_size"`
	PPOMicroBatchSizePerGPU *int `yaml:"ppo_micro_batch_size_per_gpu"`
	UseDynamicBSZ           bool `yaml:"use_dynamic_bsz"`
	PPOMaxTokenLenPerGPU    int  `yaml:"ppo_max_token_len_per_gpu"`

	ClipRatio     float64          `yaml:"clip_ratio"`
	ClipRatioLow  float64          `yaml:"clip_ratio_low"`
	ClipRatioHigh float64          `yaml:"clip_ratio_high"`
	ClipRatioC    float64          `yaml:"clip_ratio_c"`
	PolicyLoss    PolicyLossConfig `yaml:"policy_loss"`
	LossAggMode   string           `yaml:"loss_agg_mode"`
	EntropyCoeff  float64          `yaml:"entropy_coeff"`

	UseKLLoss       bool    `yaml:"use_kl_loss"`
	UseTorchCompile bool    `yaml:"use_torch_compile"`
	KLLossCoef      float64 `yaml:"kl_loss_coef"`
	KLLossType      string  `yaml:"kl_loss_type"`

	PPOEpochs int  `yaml:"ppo_epochs"`
	Shuffle   bool `yaml:"shuffle"`

	UlyssesSequenceParallelSize int  `yaml:"ulysses_sequence_parallel_size"`
	UseFusedKernels             bool `yaml:"use_fused_kernels"`

	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Optim      OptimizerConfig  `yaml:"optim"`
}

// FSDPActorConfig is the actor record consumed by FSDP workers.
type FSDPActorConfig struct {
	ActorConfig `yaml:",inline"`

	GradClip                      float64          `yaml:"grad_clip"`
	EntropyFromLogitsWithChunking bool             `yaml:"entropy_from_logits_with_chunking"`
	EntropyCheckpointing          bool             `yaml:"entropy_checkpointing"`
	FSDPConfig                    FSDPEngineConfig `yaml:"fsdp_config"`
	UseRemovePadding              bool             `yaml:"use_remove_padding"`
}

// OptimizerConfig carries the base optimizer fields plus the FSDP schedule
// knobs. The schedule knobs are zero for plain OptimizerConfig targets.
type OptimizerConfig struct {
	Target             string  `yaml:"_target_"`
	LR                 float64 `yaml:"lr"`
	LRWarmupSteps      int     `yaml:"lr_warmup_steps"`
	LRWarmupStepsRatio float64 `yaml:"lr_warmup_steps_ratio"`
	TotalTrainingSteps int     `yaml:"total_training_steps"`
	WeightDecay        float64 `yaml:"weight_decay"`

	MinLRRatio  float64 `yaml:"min_lr_ratio"`
	NumCycles   float64 `yaml:"num_cycles"`
	WarmupStyle string  `yaml:"warmup_style"`
}

// FSDPEngineConfig describes how parameters are sharded.
type FSDPEngineConfig struct {
	Target              string           `yaml:"_target_"`
	WrapPolicy          WrapPolicyConfig `yaml:"wrap_policy"`
	ParamOffload        bool             `yaml:"param_offload"`
	OptimizerOffload    bool             `yaml:"optimizer_offload"`
	OffloadPolicy       bool             `yaml:"offload_policy"`
	ReshardAfterForward bool             `yaml:"reshard_after_forward"`
	FSDPSize            int              `yaml:"fsdp_size"`
	ForwardPrefetch     bool             `yaml:"forward_prefetch"`
}

// AutoSized reports whether the shard group size is left to the runtime.
func (c FSDPEngineConfig) AutoSized() bool {
	return c.FSDPSize == AutoFSDPSize
}

// WrapPolicyConfig selects which modules get their own FSDP unit.
type WrapPolicyConfig struct {
	MinNumParams int `yaml:"min_num_params"`
}

// PolicyLossConfig parameterizes the policy loss.
type PolicyLossConfig struct {
	Target       string  `yaml:"_target_"`
	LossMode     string  `yaml:"loss_mode"`
	ClipCovRatio float64 `yaml:"clip_cov_ratio"`
	ClipCovLB    float64 `yaml:"clip_cov_lb"`
	ClipCovUB    float64 `yaml:"clip_cov_ub"`
	KLCovRatio   float64 `yaml:"kl_cov_ratio"`
	PPOKLCoef    float64 `yaml:"ppo_kl_coef"`
}

// CheckpointConfig selects what checkpoints contain.
type CheckpointConfig struct {
	Target       string   `yaml:"_target_"`
	SaveContents []string `yaml:"save_contents"`
	LoadContents []string `yaml:"load_contents"`
	AsyncSave    bool     `yaml:"async_save"`
}

// Clone returns a deep copy.
func (c FSDPActorConfig) Clone() FSDPActorConfig {
	out := c
	out.PPOMicroBatchSize = cloneIntPtr(c.PPOMicroBatchSize)
	out.PPOMicroBatchSizePerGPU = cloneIntPtr(c.PPOMicroBatchSizePerGPU)
	out.Checkpoint.SaveContents = append([]string(nil), c.Checkpoint.SaveContents...)
	out.Checkpoint.LoadContents = append([]string(nil), c.Checkpoint.LoadContents...)
	return out
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
