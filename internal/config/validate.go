package config

import (
	"fmt"
)

// Validate enforces configuration rules.
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateRobot(&config.Robot); err != nil {
		return fmt.Errorf("robot validation failed: %w", err)
	}

	if err := ValidateTiming(&config.Timing); err != nil {
		return err
	}

	if config.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}

	if err := validateAudit(&config.Audit); err != nil {
		return fmt.Errorf("audit validation failed: %w", err)
	}

	if err := validateCatalog(config.Catalog); err != nil {
		return fmt.Errorf("catalog validation failed: %w", err)
	}

	return nil
}

// ValidateTiming enforces timing rules.
func ValidateTiming(config *TimingConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateHeartbeat(config); err != nil {
		return fmt.Errorf("heartbeat validation failed: %w", err)
	}

	if err := validateDispatch(config); err != nil {
		return fmt.Errorf("dispatch timing validation failed: %w", err)
	}

	if err := validateEventBuffer(config); err != nil {
		return fmt.Errorf("event buffer validation failed: %w", err)
	}

	return nil
}

func validateRobot(r *RobotConfig) error {
	switch r.Adapter {
	case "ur", "fake":
	default:
		return fmt.Errorf("unknown adapter %q (want ur or fake)", r.Adapter)
	}
	if r.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if err := validatePort("control port", r.ControlPort); err != nil {
		return err
	}
	if err := validatePort("program port", r.ProgramPort); err != nil {
		return err
	}
	if r.ControlPort == r.ProgramPort {
		return fmt.Errorf("control and program ports must differ, both %d", r.ControlPort)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in 1..65535, got %d", name, port)
	}
	return nil
}

// validateHeartbeat validates heartbeat timing parameters.
func validateHeartbeat(config *TimingConfig) error {
	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", config.HeartbeatInterval)
	}

	// Jitter ≤ 50% of interval
	maxJitter := config.HeartbeatInterval / 2
	if config.HeartbeatJitter < 0 {
		return fmt.Errorf("heartbeat jitter must be non-negative, got %v", config.HeartbeatJitter)
	}
	if config.HeartbeatJitter > maxJitter {
		return fmt.Errorf("heartbeat jitter %v exceeds 50%% of interval %v", config.HeartbeatJitter, config.HeartbeatInterval)
	}

	if config.HeartbeatTimeout < config.HeartbeatInterval {
		return fmt.Errorf("heartbeat timeout %v must be >= interval %v", config.HeartbeatTimeout, config.HeartbeatInterval)
	}

	return nil
}

func validateDispatch(config *TimingConfig) error {
	if config.SendTimeout <= 0 {
		return fmt.Errorf("send timeout must be positive, got %v", config.SendTimeout)
	}
	if config.PacingInterval < 0 {
		return fmt.Errorf("pacing interval must be non-negative, got %v", config.PacingInterval)
	}
	return nil
}

// validateEventBuffer validates event buffer configuration.
func validateEventBuffer(config *TimingConfig) error {
	if config.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", config.EventBufferSize)
	}
	if config.EventBufferRetention <= 0 {
		return fmt.Errorf("event buffer retention must be positive, got %v", config.EventBufferRetention)
	}
	return nil
}

func validateAudit(a *AuditConfig) error {
	if a.Dir == "" {
		return fmt.Errorf("dir must not be empty")
	}
	if a.MaxSizeMB <= 0 {
		return fmt.Errorf("max size must be positive, got %d", a.MaxSizeMB)
	}
	if a.MaxBackups < 0 || a.MaxAgeDays < 0 {
		return fmt.Errorf("backups and age must be non-negative")
	}
	return nil
}

// validateCatalog checks each spec parses and names are unique. Locations
// are checked when a pick is encoded, not here.
func validateCatalog(specs []ItemSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return fmt.Errorf("item name must not be empty")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate item %q", s.Name)
		}
		seen[s.Name] = true
		if _, err := s.Item(); err != nil {
			return err
		}
	}
	return nil
}
