// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"

	"github.com/ManuGH/trainconf/internal/validate"
)

// SchemaError carries every validation failure of a record. It matches
// ErrSchema with errors.Is.
type SchemaError struct {
	validate.ValidationError
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("%v: %s", ErrSchema, e.ValidationError.Error())
}

func (e SchemaError) Is(target error) bool { return target == ErrSchema }

// Validate checks field ranges, enums and cross-field relations of cfg and
// reports all failures at once.
func Validate(cfg FSDPActorConfig) error {
	v := validate.New()

	v.OneOf("strategy", string(cfg.Strategy), Strategies)
	v.Positive("grad_clip", cfg.GradClip)
	v.Min("ulysses_sequence_parallel_size", cfg.UlyssesSequenceParallelSize, 1)

	validateBatching(v, cfg.ActorConfig)
	validateLoss(v, cfg.ActorConfig)
	validateOptim(v.Scope("optim"), cfg.Optim)
	validateFSDP(v.Scope("fsdp_config"), cfg.FSDPConfig)
	validateCheckpoint(v.Scope("checkpoint"), cfg.Checkpoint)

	if err := v.Err(); err != nil {
		return SchemaError{ValidationError: err.(validate.ValidationError)}
	}
	return nil
}

func validateBatching(v *validate.Validator, cfg ActorConfig) {
	v.Min("ppo_mini_batch_size", cfg.PPOMiniBatchSize, 1)
	v.Min("ppo_epochs", cfg.PPOEpochs, 1)
	if cfg.PPOMicroBatchSize != nil {
		v.Min("ppo_micro_batch_size", *cfg.PPOMicroBatchSize, 1)
	}
	if cfg.PPOMicroBatchSizePerGPU != nil {
		v.Min("ppo_micro_batch_size_per_gpu", *cfg.PPOMicroBatchSizePerGPU, 1)
	}
	if cfg.PPOMicroBatchSize != nil && cfg.PPOMicroBatchSizePerGPU != nil {
		v.AddError("ppo_micro_batch_size",
			"ppo_micro_batch_size and ppo_micro_batch_size_per_gpu are mutually exclusive", *cfg.PPOMicroBatchSize)
	}

	if cfg.UseDynamicBSZ {
		v.Min("ppo_max_token_len_per_gpu", cfg.PPOMaxTokenLenPerGPU, 1)
		return
	}
	micro := cfg.PPOMicroBatchSizePerGPU
	if micro == nil {
		micro = cfg.PPOMicroBatchSize
	}
	if micro != nil && *micro > 0 && cfg.PPOMiniBatchSize > 0 {
		if *micro > cfg.PPOMiniBatchSize {
			v.AddError("ppo_mini_batch_size",
				fmt.Sprintf("must be >= micro batch size %d", *micro), cfg.PPOMiniBatchSize)
		} else if cfg.PPOMiniBatchSize%*micro != 0 {
			v.AddError("ppo_mini_batch_size",
				fmt.Sprintf("must be divisible by micro batch size %d", *micro), cfg.PPOMiniBatchSize)
		}
	}
}

func validateLoss(v *validate.Validator, cfg ActorConfig) {
	v.Positive("clip_ratio", cfg.ClipRatio)
	v.Positive("clip_ratio_low", cfg.ClipRatioLow)
	v.Positive("clip_ratio_high", cfg.ClipRatioHigh)
	if cfg.ClipRatioC <= 1 {
		v.AddError("clip_ratio_c", fmt.Sprintf("value must be > 1, got %g", cfg.ClipRatioC), cfg.ClipRatioC)
	}
	v.OneOf("loss_agg_mode", cfg.LossAggMode, LossAggModes)
	v.NonNegative("entropy_coeff", cfg.EntropyCoeff)
	v.NonNegative("kl_loss_coef", cfg.KLLossCoef)
	if cfg.UseKLLoss {
		v.OneOf("kl_loss_type", cfg.KLLossType, KLLossTypes)
	}

	pl := v.Scope("policy_loss")
	pl.NotEmpty("loss_mode", cfg.PolicyLoss.LossMode)
	pl.NonNegative("clip_cov_ratio", cfg.PolicyLoss.ClipCovRatio)
	pl.NonNegative("kl_cov_ratio", cfg.PolicyLoss.KLCovRatio)
	if cfg.PolicyLoss.ClipCovLB > cfg.PolicyLoss.ClipCovUB {
		pl.AddError("clip_cov_lb",
			fmt.Sprintf("must not exceed clip_cov_ub %g", cfg.PolicyLoss.ClipCovUB), cfg.PolicyLoss.ClipCovLB)
	}
}

func validateOptim(v *validate.Validator, cfg OptimizerConfig) {
	v.Positive("lr", cfg.LR)
	v.NonNegative("weight_decay", cfg.WeightDecay)
	v.FloatRange("lr_warmup_steps_ratio", cfg.LRWarmupStepsRatio, 0, 1)
	if cfg.LRWarmupSteps < -1 {
		v.AddError("lr_warmup_steps", "value must be -1 (use ratio) or >= 0", cfg.LRWarmupSteps)
	}
	if cfg.TotalTrainingSteps < -1 {
		v.AddError("total_training_steps", "value must be -1 (set by trainer) or >= 0", cfg.TotalTrainingSteps)
	}

	if cfg.Target == TargetFSDPOptimizer || cfg.WarmupStyle != "" {
		v.OneOf("warmup_style", cfg.WarmupStyle, []string{WarmupConstant, WarmupCosine})
	}
	v.FloatRange("min_lr_ratio", cfg.MinLRRatio, 0, 1)
	v.NonNegative("num_cycles", cfg.NumCycles)
}

func validateFSDP(v *validate.Validator, cfg FSDPEngineConfig) {
	v.Min("wrap_policy.min_num_params", cfg.WrapPolicy.MinNumParams, 0)
	if cfg.FSDPSize != AutoFSDPSize && cfg.FSDPSize < 1 {
		v.AddError("fsdp_size", fmt.Sprintf("value must be %d (auto) or >= 1, got %d", AutoFSDPSize, cfg.FSDPSize), cfg.FSDPSize)
	}
}

func validateCheckpoint(v *validate.Validator, cfg CheckpointConfig) {
	for i, c := range cfg.SaveContents {
		v.OneOf(fmt.Sprintf("save_contents[%d]", i), c, CheckpointContents)
	}
	for i, c := range cfg.LoadContents {
		v.OneOf(fmt.Sprintf("load_contents[%d]", i), c, CheckpointContents)
	}
}
