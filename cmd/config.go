package cmd

import (
	"time"

	"github.com/spf13/viper"

	"github.com/runtimeterrors/aegisec/internal/shared/constants"
)

// CLIConfig captures runtime configuration shared across commands. It is
// built once in the root command and handed explicitly to whatever needs it;
// nothing reads viper after startup.
type CLIConfig struct {
	API     APIConfig
	Execute ExecuteConfig
}

// APIConfig holds the recommendation-collaborator settings.
type APIConfig struct {
	BaseURL           string
	Key               string
	Model             string
	TimeoutSecs       int
	RequestsPerMinute int
}

// ExecuteConfig consolidates flag- and file-driven execution settings.
type ExecuteConfig struct {
	TimeoutSecs  int
	RetryBudget  int
	MaxChained   int
	AllowPrivate bool
	Analyze      bool
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		API: APIConfig{
			BaseURL:           "https://openrouter.ai/api/v1",
			Model:             "deepseek/deepseek-chat-v3.1:free",
			TimeoutSecs:       int(constants.DefaultAPITimeout / time.Second),
			RequestsPerMinute: constants.DefaultAPIRequestsPerMinute,
		},
		Execute: ExecuteConfig{
			TimeoutSecs: int(constants.DefaultToolTimeout / time.Second),
			RetryBudget: constants.DefaultRetryBudget,
			MaxChained:  constants.DefaultMaxChained,
			Analyze:     true,
		},
	}
}

// applyConfigDefaults merges config file values into the runtime config when
// the user did not explicitly override the corresponding flag.
func applyConfigDefaults() {
	if viper.IsSet("api.base_url") {
		cliConfig.API.BaseURL = viper.GetString("api.base_url")
	}
	if viper.IsSet("api.model") {
		cliConfig.API.Model = viper.GetString("api.model")
	}
	if viper.IsSet("api.timeout_secs") {
		cliConfig.API.TimeoutSecs = viper.GetInt("api.timeout_secs")
	}
	if viper.IsSet("api.requests_per_minute") {
		cliConfig.API.RequestsPerMinute = viper.GetInt("api.requests_per_minute")
	}
	// The key is intentionally env-first: AEGISEC_API_KEY, with the config
	// file as fallback.
	if key := viper.GetString("api_key"); key != "" {
		cliConfig.API.Key = key
	} else if viper.IsSet("api.key") {
		cliConfig.API.Key = viper.GetString("api.key")
	}

	if viper.IsSet("execute.timeout_secs") {
		cliConfig.Execute.TimeoutSecs = viper.GetInt("execute.timeout_secs")
	}
	if viper.IsSet("execute.retry_budget") {
		cliConfig.Execute.RetryBudget = viper.GetInt("execute.retry_budget")
	}
	if viper.IsSet("execute.max_chained") {
		cliConfig.Execute.MaxChained = viper.GetInt("execute.max_chained")
	}
	if viper.IsSet("execute.allow_private") {
		cliConfig.Execute.AllowPrivate = viper.GetBool("execute.allow_private")
	}
	if viper.IsSet("execute.analyze") {
		cliConfig.Execute.Analyze = viper.GetBool("execute.analyze")
	}
}
