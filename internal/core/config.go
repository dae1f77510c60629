package core

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// awale server components.
type Config struct {
	// Hostname or IP address on which the servers will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// IP advertised to clients in discovery responses. Defaults to Hostname.
	ExternalIP string `mapstructure:"external_ip"`
	// Maximum number of concurrently connected players.
	MaxConnections int `mapstructure:"max_connections"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"logging"`

	Discovery struct {
		// UDP port on which the server answers broadcast probes.
		BroadcastPort int `mapstructure:"broadcast_port"`
		// TCP port advertised in discovery responses, used for port negotiation.
		NegotiationPort int `mapstructure:"negotiation_port"`
		// Tag prepended to the discovery response, e.g. "AWALE_SERVER:9999".
		ServerTag string `mapstructure:"server_tag"`
	} `mapstructure:"discovery"`

	Game struct {
		// Maximum number of simultaneously active games.
		MaxGames int `mapstructure:"max_games"`
		// Maximum number of spectators attached to one game.
		MaxSpectators int `mapstructure:"max_spectators"`
		// Search depth for the built-in minimax opponent.
		AIDepth int `mapstructure:"ai_depth"`
	} `mapstructure:"game"`

	Matchmaking struct {
		// Maximum number of pending challenges across all players.
		MaxChallenges int `mapstructure:"max_challenges"`
		// Seconds after which an unanswered challenge is swept.
		ChallengeMaxAgeSeconds int `mapstructure:"challenge_max_age_seconds"`
		// Minimum seconds between repeat challenges to the same opponent once
		// the decline threshold has been crossed.
		ChallengeCooldownSeconds int `mapstructure:"challenge_cooldown_seconds"`
		// Number of consecutive declines after which the cooldown applies.
		DeclineThreshold int `mapstructure:"decline_threshold"`
	} `mapstructure:"matchmaking"`

	Database struct {
		// Engine selects the database driver: sqlite or postgres.
		Engine string `mapstructure:"engine"`
		// Path of the sqlite database file (sqlite engine only).
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database for awale.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log frames to stdout.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "AWALE"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s", configPath)
		} else {
			fmt.Printf("error reading config file: %v", err)
		}
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v", err)
		os.Exit(1)
	}
	return config
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a Postgres connection string generated from the
// provided config values. Only meaningful for the postgres engine.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// AdvertisedIP returns the IP clients should be told to connect to. Falls
// back to the listen hostname when no external IP is configured.
func (c *Config) AdvertisedIP() string {
	if c.ExternalIP != "" {
		return c.ExternalIP
	}
	return c.Hostname
}
