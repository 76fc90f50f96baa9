package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method must be silero or pyannote, got %q", c.Transcription.VADMethod)
	}
	if c.Transcription.VADMethod == "pyannote" && c.Transcription.HFToken == "" {
		return errors.New("transcription.hf_token must be set when transcription.vad_method is pyannote (or export HF_TOKEN)")
	}
	if c.Transcription.TimeoutSeconds < 0 {
		return errors.New("transcription.timeout_seconds must not be negative (0 disables the limit)")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.progress_interval_ms": c.Workflow.ProgressIntervalMillis,
		"workflow.progress_cap":         c.Workflow.ProgressCap,
	}); err != nil {
		return err
	}
	if c.Workflow.TaskPauseMillis < 0 {
		return errors.New("workflow.task_pause_ms must not be negative")
	}
	if c.Workflow.ProgressCap >= 100 {
		return errors.New("workflow.progress_cap must be below 100")
	}
	prev := 0
	for _, step := range c.Workflow.ProgressFixedSteps {
		if step <= prev || step > c.Workflow.ProgressCap {
			return fmt.Errorf("workflow.progress_fixed_steps must increase and stay within 1..%d", c.Workflow.ProgressCap)
		}
		prev = step
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxFiles <= 0 {
		return errors.New("upload.max_files must be positive")
	}
	if c.Upload.MaxFileBytes <= 0 {
		return errors.New("upload.max_file_bytes must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return errors.New("upload.allowed_extensions must include at least one extension")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must not be negative")
	}
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
