package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/syncroom/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 32,
	}
	queueLimit = configVar[int]{
		envKey:       "SERVER_QUEUE_LIMIT",
		flagKey:      "queue-limit",
		defaultValue: 100,
	}
	chatHistoryLimit = configVar[int]{
		envKey:       "SERVER_CHAT_HISTORY_LIMIT",
		flagKey:      "chat-history-limit",
		defaultValue: 100,
	}
	autoAdvanceOnEnd = configVar[bool]{
		envKey:       "SERVER_AUTO_ADVANCE_ON_END",
		flagKey:      "auto-advance-on-end",
		defaultValue: false,
	}
	purgeVotesOnLeave = configVar[bool]{
		envKey:       "SERVER_PURGE_VOTES_ON_LEAVE",
		flagKey:      "purge-votes-on-leave",
		defaultValue: true,
	}
	roomIdleTTL = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_IDLE_TTL",
		flagKey:      "room-idle-ttl",
		defaultValue: 10 * time.Minute,
	}
	searchCacheTTL = configVar[time.Duration]{
		envKey:       "SERVER_SEARCH_CACHE_TTL",
		flagKey:      "search-cache-ttl",
		defaultValue: 5 * time.Minute,
	}
	invidiousURL = configVar[string]{
		envKey:       "SERVER_INVIDIOUS_URL",
		flagKey:      "invidious-url",
		defaultValue: "https://invidious.snopyta.org",
	}
	pipedURL = configVar[string]{
		envKey:       "SERVER_PIPED_URL",
		flagKey:      "piped-url",
		defaultValue: "https://pipedapi.kavin.rocks",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.Config {
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of participants in a room")
	pflag.Int(queueLimit.flagKey, queueLimit.defaultValue, "Maximum number of items in a room queue")
	pflag.Int(chatHistoryLimit.flagKey, chatHistoryLimit.defaultValue, "Number of chat messages retained per room")
	pflag.Bool(autoAdvanceOnEnd.flagKey, autoAdvanceOnEnd.defaultValue, "Advance the queue when a participant reports end of media")
	pflag.Bool(purgeVotesOnLeave.flagKey, purgeVotesOnLeave.defaultValue, "Drop a participant's pending vote when they leave")
	pflag.Duration(roomIdleTTL.flagKey, roomIdleTTL.defaultValue, "How long an empty room survives before it is reaped (0 disables)")
	pflag.Duration(searchCacheTTL.flagKey, searchCacheTTL.defaultValue, "TTL of cached video search results")
	pflag.String(invidiousURL.flagKey, invidiousURL.defaultValue, "Invidious instance for video search")
	pflag.String(pipedURL.flagKey, pipedURL.defaultValue, "Piped instance for video search fallback")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(membersLimit.flagKey, membersLimit.envKey)
	viper.BindEnv(queueLimit.flagKey, queueLimit.envKey)
	viper.BindEnv(chatHistoryLimit.flagKey, chatHistoryLimit.envKey)
	viper.BindEnv(autoAdvanceOnEnd.flagKey, autoAdvanceOnEnd.envKey)
	viper.BindEnv(purgeVotesOnLeave.flagKey, purgeVotesOnLeave.envKey)
	viper.BindEnv(roomIdleTTL.flagKey, roomIdleTTL.envKey)
	viper.BindEnv(searchCacheTTL.flagKey, searchCacheTTL.envKey)
	viper.BindEnv(invidiousURL.flagKey, invidiousURL.envKey)
	viper.BindEnv(pipedURL.flagKey, pipedURL.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	return &app.Config{
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		MembersLimit:      viper.GetInt(membersLimit.flagKey),
		QueueLimit:        viper.GetInt(queueLimit.flagKey),
		ChatHistoryLimit:  viper.GetInt(chatHistoryLimit.flagKey),
		AutoAdvanceOnEnd:  viper.GetBool(autoAdvanceOnEnd.flagKey),
		PurgeVotesOnLeave: viper.GetBool(purgeVotesOnLeave.flagKey),
		RoomIdleTTL:       viper.GetDuration(roomIdleTTL.flagKey),
		SearchCacheTTL:    viper.GetDuration(searchCacheTTL.flagKey),
		InvidiousURL:      viper.GetString(invidiousURL.flagKey),
		PipedURL:          viper.GetString(pipedURL.flagKey),
		RedisHost:         viper.GetString(redisHost.flagKey),
		RedisPort:         viper.GetInt(redisPort.flagKey),
		RedisPassword:     viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	cfg := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, cfg))
}
