package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/overdue/internal/models"
)

const (
	timeFormat      = "2006-01-02 15:04:05"
	lookupKey       = "lookup:telegram"
	chatKeyPrefix   = "chat:"
	chatBindKeyTpl  = chatKeyPrefix + "%d" // chat:${chatID}
	tokenPrefix     = "sk-ovrd-"
	defaultTokenTpl = "auth:{user}"
)

type TokenManager struct {
	redis       *redis.Client
	keyTemplate string
}

// NewTokenManager stores tokens under keyTemplate, the same template Auth
// reads them from.
func NewTokenManager(redis *redis.Client, keyTemplate string) *TokenManager {
	if keyTemplate == "" {
		keyTemplate = defaultTokenTpl
	}
	return &TokenManager{redis: redis, keyTemplate: keyTemplate}
}

func generateToken() (string, error) {
	randomBytes := make([]byte, 12)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return tokenPrefix + hex.EncodeToString(randomBytes), nil
}

// FetchOrCreateUserToken returns the user's token, creating it on first use.
// The bool is true when the token was just created.
func (tm *TokenManager) FetchOrCreateUserToken(ctx context.Context, user string) (*models.TokenInfo, bool, error) {
	key := userKey(tm.keyTemplate, user)

	token, err := tm.redis.HGet(ctx, key, "token").Result()
	if err != nil && err != redis.Nil {
		return nil, false, fmt.Errorf("failed to check token: %w", err)
	}

	now := time.Now().UTC()
	isNewToken := false

	if err == redis.Nil {
		token, err = generateToken()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate token: %w", err)
		}

		pipe := tm.redis.Pipeline()
		pipe.HSet(ctx, key, map[string]interface{}{
			"token":                 token,
			"request_count":         1,
			"last_request_dttm_utc": now.Format(timeFormat),
			"created_dttm_utc":      now.Format(timeFormat),
		})

		if _, err := pipe.Exec(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to create token: %w", err)
		}

		isNewToken = true
	} else {
		pipe := tm.redis.Pipeline()
		pipe.HIncrBy(ctx, key, "request_count", 1)
		pipe.HSet(ctx, key, "last_request_dttm_utc", now.Format(timeFormat))

		if _, err := pipe.Exec(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to update token stats: %w", err)
		}
	}

	values, err := tm.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get token info: %w", err)
	}

	lastReqTime, _ := time.Parse(timeFormat, values["last_request_dttm_utc"])
	createdTime, _ := time.Parse(timeFormat, values["created_dttm_utc"])
	reqCount, _ := strconv.Atoi(values["request_count"])

	return &models.TokenInfo{
		UserID:          user,
		Token:           values["token"],
		RequestCount:    reqCount,
		LastRequestTime: lastReqTime,
		CreatedTime:     createdTime,
	}, isNewToken, nil
}

func (tm *TokenManager) SaveUserTelegramMapping(ctx context.Context, tgUsername, userID string) error {
	return tm.redis.HSet(ctx, lookupKey, tgUsername, userID).Err()
}

func (tm *TokenManager) FetchUserIDByTelegram(ctx context.Context, tgUsername string) (string, error) {
	userID, err := tm.redis.HGet(ctx, lookupKey, tgUsername).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("no mapping found for telegram user %s", tgUsername)
	}
	return userID, err
}

func (tm *TokenManager) BindChat(ctx context.Context, chatID int64, binding *models.ChatAssessmentBinding) error {
	key := fmt.Sprintf(chatBindKeyTpl, chatID)
	return tm.redis.HSet(ctx, key, map[string]interface{}{
		"assessment":     binding.Assessment,
		"comment":        binding.Comment,
		"bound_dttm_utc": binding.BindingTime.UTC().Format(timeFormat),
		"bound_by":       binding.BoundBy,
	}).Err()
}

func parseBinding(values map[string]string) *models.ChatAssessmentBinding {
	bindingTime, _ := time.Parse(timeFormat, values["bound_dttm_utc"])
	boundBy, _ := strconv.ParseInt(values["bound_by"], 10, 64)

	return &models.ChatAssessmentBinding{
		Assessment:  values["assessment"],
		Comment:     values["comment"],
		BindingTime: bindingTime,
		BoundBy:     boundBy,
	}
}

func (tm *TokenManager) FetchChatBinding(ctx context.Context, chatID int64) (*models.ChatAssessmentBinding, error) {
	key := fmt.Sprintf(chatBindKeyTpl, chatID)

	values, err := tm.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assessment binding for chat %d: %w", chatID, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no assessment bound to chat %d", chatID)
	}

	return parseBinding(values), nil
}

// FetchAllChatBindings returns bindings keyed by chat id.
func (tm *TokenManager) FetchAllChatBindings(ctx context.Context) (map[string]*models.ChatAssessmentBinding, error) {
	// FIXME: scans are expensive
	iter := tm.redis.Scan(ctx, 0, chatKeyPrefix+"*", 0).Iterator()

	bindings := make(map[string]*models.ChatAssessmentBinding)

	for iter.Next(ctx) {
		key := iter.Val()
		chatID := strings.TrimPrefix(key, chatKeyPrefix)

		values, err := tm.redis.HGetAll(ctx, key).Result()
		if err != nil {
			continue
		}

		bindings[chatID] = parseBinding(values)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch chat bindings: %w", err)
	}

	return bindings, nil
}

func (tm *TokenManager) Close() error {
	if tm.redis != nil {
		return tm.redis.Close()
	}
	return nil
}
