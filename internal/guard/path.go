package guard

import "time"

// CriticalPath names an operation category protected by the guard.
type CriticalPath string

// Critical paths receive timeout, retry and circuit breaker protection.
const (
	BlockchainTransaction CriticalPath = "blockchain_transaction"
	BLEDeviceConnection   CriticalPath = "ble_device_connection"
	Authentication        CriticalPath = "authentication"
	DatabaseOperation     CriticalPath = "database_operation"
	TransactionProcessing CriticalPath = "transaction_processing"
	ConfigurationReload   CriticalPath = "configuration_reload"
	BackupOperation       CriticalPath = "backup_operation"
	SecurityValidation    CriticalPath = "security_validation"
	MonitoringMetrics     CriticalPath = "monitoring_metrics"
	HealthCheck           CriticalPath = "health_check"
)

// Non-critical paths run once and only log failures.
const (
	GeneralAPI    CriticalPath = "general_api"
	GeneralSystem CriticalPath = "general_system"
	Logging       CriticalPath = "logging"
)

// FallbackStrategy describes how a path degrades on failure.
type FallbackStrategy string

const (
	FallbackRetry          FallbackStrategy = "retry"
	FallbackUseBackup      FallbackStrategy = "use_backup"
	FallbackDegradedMode   FallbackStrategy = "degraded_mode"
	FallbackFailFast       FallbackStrategy = "fail_fast"
	FallbackCircuitBreaker FallbackStrategy = "circuit_breaker"
	FallbackLogOnly        FallbackStrategy = "log_only"
)

// PathConfig holds the protection settings of a single path.
type PathConfig struct {
	Timeout          time.Duration    // per attempt; zero disables the timeout
	MaxRetries       int              // retries after the first attempt
	RetryDelay       time.Duration    // fixed wait between attempts
	BreakerThreshold int              // failed sessions that open the breaker
	BreakerCooldown  time.Duration    // time spent Open before a trial is admitted
	AlertOnFailure   bool             // notify on Critical failures
	AutoRecovery     bool             // allow Open -> HalfOpen after the cool-down
	Fallback         FallbackStrategy
	IsCritical       bool
}

// DefaultPathConfig returns the built-in configuration of path. Unclassified
// paths get the non-critical, log-only configuration.
func DefaultPathConfig(path CriticalPath) PathConfig {
	switch path {
	case BlockchainTransaction, TransactionProcessing:
		return PathConfig{
			Timeout:          30 * time.Second,
			MaxRetries:       3,
			RetryDelay:       2 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  time.Minute,
			AlertOnFailure:   true,
			AutoRecovery:     true,
			Fallback:         FallbackRetry,
			IsCritical:       true,
		}
	case BLEDeviceConnection:
		return PathConfig{
			Timeout:          10 * time.Second,
			MaxRetries:       3,
			RetryDelay:       time.Second,
			BreakerThreshold: 3,
			BreakerCooldown:  30 * time.Second,
			AlertOnFailure:   true,
			AutoRecovery:     true,
			Fallback:         FallbackRetry,
			IsCritical:       true,
		}
	case Authentication:
		return PathConfig{
			Timeout:          5 * time.Second,
			MaxRetries:       1,
			RetryDelay:       500 * time.Millisecond,
			BreakerThreshold: 5,
			BreakerCooldown:  5 * time.Minute,
			AlertOnFailure:   true,
			AutoRecovery:     true,
			Fallback:         FallbackFailFast,
			IsCritical:       true,
		}
	case SecurityValidation:
		return PathConfig{
			Timeout:          5 * time.Second,
			MaxRetries:       0,
			BreakerThreshold: 3,
			BreakerCooldown:  5 * time.Minute,
			AlertOnFailure:   true,
			AutoRecovery:     false,
			Fallback:         FallbackFailFast,
			IsCritical:       true,
		}
	case DatabaseOperation:
		return PathConfig{
			Timeout:          15 * time.Second,
			MaxRetries:       3,
			RetryDelay:       time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  time.Minute,
			AlertOnFailure:   true,
			AutoRecovery:     true,
			Fallback:         FallbackUseBackup,
			IsCritical:       true,
		}
	case ConfigurationReload:
		return PathConfig{
			Timeout:          10 * time.Second,
			MaxRetries:       2,
			RetryDelay:       2 * time.Second,
			BreakerThreshold: 3,
			BreakerCooldown:  2 * time.Minute,
			AlertOnFailure:   true,
			AutoRecovery:     true,
			Fallback:         FallbackUseBackup,
			IsCritical:       true,
		}
	case BackupOperation:
		return PathConfig{
			Timeout:          5 * time.Minute,
			MaxRetries:       2,
			RetryDelay:       30 * time.Second,
			BreakerThreshold: 3,
			BreakerCooldown:  10 * time.Minute,
			AlertOnFailure:   true,
			AutoRecovery:     true,
			Fallback:         FallbackRetry,
			IsCritical:       true,
		}
	case MonitoringMetrics:
		return PathConfig{
			Timeout:          5 * time.Second,
			MaxRetries:       1,
			RetryDelay:       time.Second,
			BreakerThreshold: 10,
			BreakerCooldown:  time.Minute,
			AutoRecovery:     true,
			Fallback:         FallbackDegradedMode,
			IsCritical:       true,
		}
	case HealthCheck:
		return PathConfig{
			Timeout:          5 * time.Second,
			MaxRetries:       2,
			RetryDelay:       time.Second,
			BreakerThreshold: 3,
			BreakerCooldown:  30 * time.Second,
			AlertOnFailure:   true,
			AutoRecovery:     true,
			Fallback:         FallbackDegradedMode,
			IsCritical:       true,
		}
	default:
		return PathConfig{
			Timeout:  30 * time.Second,
			Fallback: FallbackLogOnly,
		}
	}
}
