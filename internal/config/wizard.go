package config

import (
	"fmt"
	"net/mail"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to concierge! Let's configure Rob.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select reply provider",
		Items: []string{"openrouter", "openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Reply.Provider = ProviderType(providerStr)

	// 2. Model.
	modelPrompt := promptui.Prompt{
		Label:   "Model",
		Default: DefaultModel(cfg.Reply.Provider),
	}
	if cfg.Reply.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Operator address, the inbox that receives appointment requests.
	operatorPrompt := promptui.Prompt{
		Label: "Operator email (receives appointment requests)",
		Validate: func(s string) error {
			if s == "" {
				return nil
			}
			_, err := mail.ParseAddress(s)
			return err
		},
	}
	if cfg.Notifier.OperatorAddress, err = operatorPrompt.Run(); err != nil {
		return nil, fmt.Errorf("operator address: %w", err)
	}

	// 4. Listen port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			p, err := strconv.Atoi(s)
			if err != nil || p <= 0 || p > 65535 {
				return fmt.Errorf("invalid port")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)
	cfg.Notifier.Endpoint = fmt.Sprintf("http://localhost:%d/api/send-email", cfg.Server.Port)

	if envVar := APIKeyEnvVar(cfg.Reply.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment (or reply.api_key) before running concierge server.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
