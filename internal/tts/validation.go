package tts

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/voxfree/voxfree/internal/ttypes"
)

// espeakBinaries are tried in order when no binary is configured.
var espeakBinaries = []string{"espeak-ng", "espeak"}

// ValidationResult contains the result of engine validation
type ValidationResult struct {
	// Engine is the validated engine type
	Engine ttypes.EngineType

	// Available indicates if the engine is available and configured
	Available bool

	// Error contains any validation error
	Error error

	// Guidance provides setup instructions if validation failed
	Guidance string

	// Details contains additional validation information
	Details map[string]string
}

// ValidateEngineSelection resolves the engine to use. The CLI argument takes
// precedence over the configured engine.
func ValidateEngineSelection(cliArg string, config Config) (ttypes.EngineType, error) {
	engineType := strings.ToLower(strings.TrimSpace(cliArg))
	if engineType == "" {
		engineType = strings.ToLower(config.Speech.Engine)
	}

	switch engineType {
	case "":
		return ttypes.EngineNone, fmt.Errorf("%w\n\nSet one in voxfree.yml:\n  speech:\n    engine: espeak", ErrNoEngineConfigured)
	case "espeak", "espeak-ng":
		return ttypes.EngineEspeak, nil
	case "mock":
		return ttypes.EngineMock, nil
	default:
		return ttypes.EngineNone, fmt.Errorf("%w: %s\n\nSupported engines:\n  - espeak (on-device, espeak-ng or espeak)\n  - mock (silent, for testing)", ErrInvalidEngine, engineType)
	}
}

// ValidateEngine checks that the selected engine can run on this machine.
func ValidateEngine(engineType ttypes.EngineType, config Config) *ValidationResult {
	result := &ValidationResult{
		Engine:  engineType,
		Details: make(map[string]string),
	}

	switch engineType {
	case ttypes.EngineEspeak:
		result.Details["engine"] = "eSpeak (on-device)"
		path, err := FindEspeakBinary(config.Speech.Binary)
		if err != nil {
			result.Error = err
			result.Guidance = espeakInstallGuidance()
			return result
		}
		result.Details["binary_path"] = path
		result.Available = true
	case ttypes.EngineMock:
		result.Details["engine"] = "Mock (silent)"
		result.Available = true
	case ttypes.EngineNone:
		result.Error = ErrNoEngineConfigured
		result.Guidance = "Please specify an engine with --engine or in the config file"
	default:
		result.Error = fmt.Errorf("%w: %s", ErrInvalidEngine, engineType)
		result.Guidance = "Supported engines: espeak, mock"
	}

	return result
}

// FindEspeakBinary returns the path of the configured binary, or the first
// espeak variant found in PATH.
func FindEspeakBinary(configured string) (string, error) {
	candidates := espeakBinaries
	if configured != "" {
		candidates = []string{configured}
	}

	var lastErr error
	for _, name := range candidates {
		path, err := exec.LookPath(name)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}

	return "", NewTTSError(ErrorCodeEngineUnavailable,
		fmt.Sprintf("%s not found in PATH", strings.Join(candidates, " or ")), lastErr)
}

func espeakInstallGuidance() string {
	return `eSpeak NG is not installed. To install:

   # Ubuntu/Debian
   sudo apt install espeak-ng

   # Arch Linux
   sudo pacman -S espeak-ng

   # macOS (Homebrew)
   brew install espeak-ng

Or set speech.binary in voxfree.yml to the path of your espeak binary.`
}
