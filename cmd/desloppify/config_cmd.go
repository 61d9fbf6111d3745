package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/theRebelliousNerd/desloppify/internal/config"
	"github.com/theRebelliousNerd/desloppify/internal/errs"
	"github.com/theRebelliousNerd/desloppify/internal/finding"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or write .desloppify/config.json",
}

var (
	ignoreNote        string
	ignoreAttestation string
)

var configIgnoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Manage finding-suppression patterns",
}

var configIgnoreAddCmd = &cobra.Command{
	Use:   "add <pattern>",
	Short: "Add a pattern to the ignore list and suppress its matches immediately",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		cfg := proj.cfg
		pattern := args[0]
		found := false
		for _, p := range cfg.Ignore {
			if p == pattern {
				found = true
				break
			}
		}
		if !found {
			cfg.Ignore = append(cfg.Ignore, pattern)
		}
		if cfg.IgnoreMetadata == nil {
			cfg.IgnoreMetadata = map[string]config.IgnoreMeta{}
		}
		cfg.IgnoreMetadata[pattern] = config.IgnoreMeta{Note: ignoreNote, AddedAt: time.Now()}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(proj.root, cfg); err != nil {
			return errs.Persistence("config.ignore.add", err)
		}
		proj.state.ApplySuppression(cfg.Ignore)
		if ignoreAttestation != "" {
			var affected []string
			for id, f := range proj.state.Findings {
				if f.Suppressed && f.Matches(pattern) {
					affected = append(affected, id)
				}
			}
			proj.state.AttestationLog = append(proj.state.AttestationLog, finding.AttestationEntry{
				Timestamp: time.Now(), Command: "ignore", Pattern: pattern,
				Attestation: ignoreAttestation, Affected: affected,
			})
		}
		if err := proj.save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added ignore pattern: %s\n", pattern)
		return nil
	}),
}

var configIgnoreRemoveCmd = &cobra.Command{
	Use:   "remove <pattern>",
	Short: "Remove a pattern from the ignore list",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		cfg := proj.cfg
		pattern := args[0]
		var kept []string
		for _, p := range cfg.Ignore {
			if p != pattern {
				kept = append(kept, p)
			}
		}
		cfg.Ignore = kept
		delete(cfg.IgnoreMetadata, pattern)
		if err := config.Save(proj.root, cfg); err != nil {
			return errs.Persistence("config.ignore.remove", err)
		}
		proj.state.ApplySuppression(cfg.Ignore)
		if err := proj.save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed ignore pattern: %s\n", pattern)
		return nil
	}),
}

var configIgnoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ignore patterns",
	Args:  cobra.NoArgs,
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		patterns := append([]string(nil), proj.cfg.Ignore...)
		sort.Strings(patterns)
		for _, p := range patterns {
			meta := proj.cfg.IgnoreMetadata[p]
			if meta.Note != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s — %s\n", p, meta.Note)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		}
		return nil
	}),
}

func init() {
	configIgnoreAddCmd.Flags().StringVar(&ignoreNote, "note", "", "why this pattern is ignored")
	configIgnoreAddCmd.Flags().StringVar(&ignoreAttestation, "attest", "", "optional attestation recorded in the audit log")
	configIgnoreCmd.AddCommand(configIgnoreAddCmd, configIgnoreRemoveCmd, configIgnoreListCmd)
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		val, err := configField(proj.cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
		return nil
	}),
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Args:  cobra.ExactArgs(2),
	RunE: withProject(func(cmd *cobra.Command, proj *project, args []string) error {
		cfg := proj.cfg
		if err := setConfigField(&cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(proj.root, cfg); err != nil {
			return errs.Persistence("config.set", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
		return nil
	}),
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configIgnoreCmd)
}

func configField(cfg config.Config, key string) (string, error) {
	switch key {
	case "target_strict_score":
		return strconv.FormatFloat(cfg.TargetStrictScore, 'f', -1, 64), nil
	case "superseded_ttl_days":
		return strconv.Itoa(cfg.SupersededTTLDays), nil
	case "min_cluster_size":
		return strconv.Itoa(cfg.MinClusterSize), nil
	case "batch_wontfix_confirm_threshold":
		return strconv.Itoa(cfg.BatchWontfixConfirmThreshold), nil
	case "detector_overrides_path":
		return cfg.DetectorOverridesPath, nil
	case "finding_noise_budget":
		return strconv.Itoa(cfg.FindingNoiseBudget), nil
	case "finding_noise_global_budget":
		return strconv.Itoa(cfg.FindingNoiseGlobalBudget), nil
	default:
		return "", errs.Validationf("config.get", "unknown key %q", key)
	}
}

func setConfigField(cfg *config.Config, key, value string) error {
	switch key {
	case "target_strict_score":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errs.Validationf("config.set", "target_strict_score must be a number: %v", err)
		}
		cfg.TargetStrictScore = v
	case "superseded_ttl_days":
		v, err := strconv.Atoi(value)
		if err != nil {
			return errs.Validationf("config.set", "superseded_ttl_days must be an integer: %v", err)
		}
		cfg.SupersededTTLDays = v
	case "min_cluster_size":
		v, err := strconv.Atoi(value)
		if err != nil {
			return errs.Validationf("config.set", "min_cluster_size must be an integer: %v", err)
		}
		cfg.MinClusterSize = v
	case "batch_wontfix_confirm_threshold":
		v, err := strconv.Atoi(value)
		if err != nil {
			return errs.Validationf("config.set", "batch_wontfix_confirm_threshold must be an integer: %v", err)
		}
		cfg.BatchWontfixConfirmThreshold = v
	case "detector_overrides_path":
		cfg.DetectorOverridesPath = value
	case "finding_noise_budget":
		v, err := strconv.Atoi(value)
		if err != nil {
			return errs.Validationf("config.set", "finding_noise_budget must be an integer: %v", err)
		}
		cfg.FindingNoiseBudget = v
	case "finding_noise_global_budget":
		v, err := strconv.Atoi(value)
		if err != nil {
			return errs.Validationf("config.set", "finding_noise_global_budget must be an integer: %v", err)
		}
		cfg.FindingNoiseGlobalBudget = v
	default:
		return errs.Validationf("config.set", "unknown key %q", key)
	}
	return nil
}
