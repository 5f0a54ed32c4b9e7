package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Station struct {
		ID          string `mapstructure:"id"`
		Name        string `mapstructure:"name"`
		CatalogPath string `mapstructure:"catalog_path"`
	} `mapstructure:"station"`
	Audio struct {
		Root          string  `mapstructure:"root"`
		ArchiveRoot   string  `mapstructure:"archive_root"`
		Format        string  `mapstructure:"format"`
		BitrateKbps   int     `mapstructure:"bitrate_kbps"`
		SpeakerGapSec float64 `mapstructure:"speaker_gap_seconds"`
	} `mapstructure:"audio"`
	Scheduler struct {
		TickSeconds             int    `mapstructure:"tick_seconds"`
		BufferMinutes           int    `mapstructure:"buffer_minutes"`
		MinQueueDepthMinutes    int    `mapstructure:"min_queue_depth_minutes"`
		TransitionThresholdMins int    `mapstructure:"transition_threshold_minutes"`
		HandoverCooldownMinutes int    `mapstructure:"handover_cooldown_minutes"`
		RequestBatchSize        int    `mapstructure:"request_batch_size"`
		TalkGapSeconds          int    `mapstructure:"talk_gap_seconds"`
		AvgMusicSeconds         int    `mapstructure:"avg_music_seconds"`
		AvgTalkSeconds          int    `mapstructure:"avg_talk_seconds"`
		RetentionDays           int    `mapstructure:"retention_days"`
		MetricsPort             string `mapstructure:"metrics_port"`
		DryRun                  bool
	} `mapstructure:"scheduler"`
	Providers struct {
		ScriptURL      string  `mapstructure:"script_url"`
		SpeechURL      string  `mapstructure:"speech_url"`
		MusicURL       string  `mapstructure:"music_url"`
		APIKey         string  `mapstructure:"api_key"`
		DuoProbability float64 `mapstructure:"duo_probability"`
	} `mapstructure:"providers"`
	Database struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
}

func Load() *Config {
	viper.SetEnvPrefix("RADIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register keys
	viper.BindEnv("station.id")
	viper.BindEnv("station.name")
	viper.BindEnv("station.catalog_path")
	viper.BindEnv("audio.root")
	viper.BindEnv("audio.archive_root")
	viper.BindEnv("audio.format")
	viper.BindEnv("audio.bitrate_kbps")
	viper.BindEnv("audio.speaker_gap_seconds")
	viper.BindEnv("scheduler.tick_seconds")
	viper.BindEnv("scheduler.buffer_minutes")
	viper.BindEnv("scheduler.min_queue_depth_minutes")
	viper.BindEnv("scheduler.transition_threshold_minutes")
	viper.BindEnv("scheduler.handover_cooldown_minutes")
	viper.BindEnv("scheduler.request_batch_size")
	viper.BindEnv("scheduler.talk_gap_seconds")
	viper.BindEnv("scheduler.avg_music_seconds")
	viper.BindEnv("scheduler.avg_talk_seconds")
	viper.BindEnv("scheduler.retention_days")
	viper.BindEnv("scheduler.metrics_port")
	viper.BindEnv("providers.script_url")
	viper.BindEnv("providers.speech_url")
	viper.BindEnv("providers.music_url")
	viper.BindEnv("providers.api_key")
	viper.BindEnv("providers.duo_probability")
	viper.BindEnv("database.host")
	viper.BindEnv("database.port")
	viper.BindEnv("database.user")
	viper.BindEnv("database.password")
	viper.BindEnv("database.name")

	// Defaults
	viper.SetDefault("station.id", "aurora")
	viper.SetDefault("station.name", "Aurora Radio")
	viper.SetDefault("station.catalog_path", "shows.yaml")
	viper.SetDefault("audio.root", "./audio")
	viper.SetDefault("audio.archive_root", "./archive")
	viper.SetDefault("audio.format", "mp3")
	viper.SetDefault("audio.bitrate_kbps", 128)
	viper.SetDefault("audio.speaker_gap_seconds", 0.4)
	viper.SetDefault("scheduler.tick_seconds", 30)
	viper.SetDefault("scheduler.buffer_minutes", 60)
	viper.SetDefault("scheduler.min_queue_depth_minutes", 30)
	viper.SetDefault("scheduler.transition_threshold_minutes", 15)
	viper.SetDefault("scheduler.handover_cooldown_minutes", 10)
	viper.SetDefault("scheduler.request_batch_size", 5)
	viper.SetDefault("scheduler.talk_gap_seconds", 180)
	viper.SetDefault("scheduler.avg_music_seconds", 180)
	viper.SetDefault("scheduler.avg_talk_seconds", 90)
	viper.SetDefault("scheduler.retention_days", 30)
	viper.SetDefault("scheduler.metrics_port", ":9091")
	viper.SetDefault("providers.duo_probability", 0.3)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	return &cfg
}

// Validate checks the tuning surface before the control loop starts.
// It collects every violation so a broken deployment is reported in one shot.
// Invalid values are fatal: the loop must never run with them.
func (c *Config) Validate() error {
	var problems []string

	positive := func(name string, v int) {
		if v <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be a positive integer, got %d", name, v))
		}
	}
	positive("scheduler.tick_seconds", c.Scheduler.TickSeconds)
	positive("scheduler.buffer_minutes", c.Scheduler.BufferMinutes)
	positive("scheduler.min_queue_depth_minutes", c.Scheduler.MinQueueDepthMinutes)
	positive("scheduler.transition_threshold_minutes", c.Scheduler.TransitionThresholdMins)
	positive("scheduler.handover_cooldown_minutes", c.Scheduler.HandoverCooldownMinutes)
	positive("scheduler.request_batch_size", c.Scheduler.RequestBatchSize)
	positive("scheduler.talk_gap_seconds", c.Scheduler.TalkGapSeconds)
	positive("scheduler.avg_music_seconds", c.Scheduler.AvgMusicSeconds)
	positive("scheduler.avg_talk_seconds", c.Scheduler.AvgTalkSeconds)
	positive("scheduler.retention_days", c.Scheduler.RetentionDays)
	positive("audio.bitrate_kbps", c.Audio.BitrateKbps)

	if c.Audio.Root == "" {
		problems = append(problems, "audio.root must not be empty")
	}
	if c.Audio.ArchiveRoot == "" {
		problems = append(problems, "audio.archive_root must not be empty")
	}
	if c.Providers.DuoProbability < 0 || c.Providers.DuoProbability > 1 {
		problems = append(problems, fmt.Sprintf("providers.duo_probability must be in [0,1], got %v", c.Providers.DuoProbability))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
