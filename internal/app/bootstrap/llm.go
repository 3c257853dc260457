package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/dental-ai-assistant/internal/config"
	"github.com/wolfman30/dental-ai-assistant/internal/dialogue"
	"github.com/wolfman30/dental-ai-assistant/internal/safety"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// BuildLLMClient returns the primary provider, wrapped with LLMFallbackProvider when one
// is set. A nil client with a nil error means no provider has credentials. awsCfg is only
// needed for bedrock.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (dialogue.LLMClient, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	primary, closePrimary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, noop, err
	}
	if primary == nil {
		logger.Warn("no llm provider configured; replies fall back to the missing-field prompt", "provider", cfg.LLMProvider)
		return nil, noop, nil
	}
	if cfg.LLMFallbackProvider == "" || cfg.LLMFallbackProvider == cfg.LLMProvider {
		logger.Info("llm provider ready", "provider", cfg.LLMProvider)
		return primary, closePrimary, nil
	}

	fallback, closeFallback, err := buildProvider(ctx, cfg.LLMFallbackProvider, cfg, awsCfg)
	if err != nil {
		closePrimary()
		return nil, noop, err
	}
	if fallback == nil {
		logger.Warn("llm fallback provider has no credentials; running without fallback", "fallback", cfg.LLMFallbackProvider)
		return primary, closePrimary, nil
	}
	logger.Info("llm provider ready", "provider", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider)
	closeAll := func() {
		closePrimary()
		closeFallback()
	}
	return dialogue.NewFallbackLLMClient(primary, fallback, logger), closeAll, nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg *aws.Config) (dialogue.LLMClient, func(), error) {
	noop := func() {}
	switch name {
	case "", "none", "scripted":
		return nil, noop, nil
	case "groq", "openai":
		if strings.TrimSpace(cfg.GroqAPIKey) == "" {
			return nil, noop, nil
		}
		client, err := dialogue.NewOpenAILLMClient(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, noop, nil
		}
		if awsCfg == nil {
			return nil, noop, errors.New("bootstrap: bedrock requires aws config")
		}
		return dialogue.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), noop, nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, noop, nil
		}
		client, err := dialogue.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}

// BuildEngine wraps client in the clinic's dialogue engine. Without a client, a scripted
// engine with no canned replies is used so the service asks for missing fields itself.
func BuildEngine(client dialogue.LLMClient, cfg *appconfig.Config, logger *logging.Logger) dialogue.Engine {
	if client == nil {
		engine := dialogue.NewScriptedEngine()
		engine.Default = ""
		return engine
	}
	return dialogue.NewLLMEngine(client, cfg.ClinicName, logger)
}

// BuildSafetyGates returns the inbound and outbound gates. Pattern classifiers always
// run; the LLM classifier joins both chains when enabled and a client exists.
func BuildSafetyGates(cfg *appconfig.Config, client dialogue.LLMClient, logger *logging.Logger) (*safety.FailClosed, *safety.FailClosed) {
	inbound := safety.Chain{safety.NewInboundClassifier()}
	outbound := safety.Chain{safety.NewOutboundClassifier()}
	if cfg != nil && cfg.SafetyLLMEnabled {
		if client == nil {
			if logger != nil {
				logger.Warn("SAFETY_LLM_ENABLED set without an llm provider; using pattern classifiers only")
			}
		} else {
			classifier := safety.NewLLMClassifier(client, "")
			inbound = append(inbound, classifier)
			outbound = append(outbound, classifier)
		}
	}
	return safety.NewFailClosed(inbound, logger), safety.NewFailClosed(outbound, logger)
}
