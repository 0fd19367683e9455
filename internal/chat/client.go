// Package chat provisions and archives rooms in the external chat service.
package chat

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mroshb/roommate_match/internal/metrics"
	"github.com/mroshb/roommate_match/internal/security"
	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/mroshb/roommate_match/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Audience is the token audience the chat service accepts.
const Audience = "chat-service"

const (
	breakerName = "chat-service"
	tokenTTL    = time.Minute
)

type Config struct {
	BaseURL string
	Secret  string
	Timeout time.Duration

	// Breaker tuning. Zero values fall back to the defaults below.
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

// Client talks to the chat service over HTTP. Calls go through a circuit breaker so an
// unavailable chat service fails fast instead of stalling match acceptance.
type Client struct {
	baseURL *url.URL
	secret  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[string]
	log     *zap.SugaredLogger
}

type createRoomRequest struct {
	Participants []string `json:"participants"`
	MatchID      string   `json:"matchId"`
}

type createRoomResponse struct {
	RoomID string `json:"roomId"`
}

// statusError is a non-2xx response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chat service returned %d: %s", e.status, e.body)
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("chat service URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid chat service URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BreakerMinRequests == 0 {
		cfg.BreakerMinRequests = 10
	}
	if cfg.BreakerFailureRatio <= 0 {
		cfg.BreakerFailureRatio = 0.6
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = time.Minute
	}

	log := logger.Named("chat")
	metrics.ChatBreakerState.Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailureRatio
		},
		// Rejections by the chat service mean it is up.
		IsSuccessful: func(err error) bool {
			var se *statusError
			if stderrors.As(err, &se) {
				return se.status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infow("Circuit breaker state transition", "breaker", name, "from", from.String(), "to", to.String())
			metrics.ChatBreakerState.Set(stateToFloat(to))
		},
	})

	return &Client{
		baseURL: base,
		secret:  cfg.Secret,
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
		log:     log,
	}, nil
}

// CreateRoom opens a room for the participants of matchID and returns its id. The match id is
// sent as idempotency key so a repeated call returns the same room.
func (c *Client) CreateRoom(ctx context.Context, participants []string, matchID string) (string, error) {
	body, err := json.Marshal(createRoomRequest{Participants: participants, MatchID: matchID})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode room request")
	}

	roomID, err := c.execute(ctx, "create_room", func() (string, error) {
		resp, err := c.do(ctx, http.MethodPost, "/v1/rooms", matchID, body)
		if err != nil {
			return "", err
		}

		var out createRoomResponse
		if err := json.Unmarshal(resp, &out); err != nil {
			return "", fmt.Errorf("decode room response: %w", err)
		}
		if out.RoomID == "" {
			return "", fmt.Errorf("chat service returned no room id")
		}
		return out.RoomID, nil
	})
	if err != nil {
		return "", err
	}

	c.log.Infow("Chat room created", "match_id", matchID, "room_id", roomID)
	return roomID, nil
}

// ArchiveRoom closes a room. Archiving a room the service no longer knows is not an error.
func (c *Client) ArchiveRoom(ctx context.Context, roomID string) error {
	_, err := c.execute(ctx, "archive_room", func() (string, error) {
		_, err := c.do(ctx, http.MethodPost, "/v1/rooms/"+url.PathEscape(roomID)+"/archive", "", nil)
		var se *statusError
		if stderrors.As(err, &se) && se.status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	})
	if err != nil {
		return err
	}

	c.log.Infow("Chat room archived", "room_id", roomID)
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func() (string, error)) (string, error) {
	result, err := c.cb.Execute(fn)
	if err == nil {
		metrics.RecordChatRequest(operation, nil)
		return result, nil
	}

	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ChatRequests.WithLabelValues(operation, "rejected").Inc()
		c.log.Warnw("Chat request rejected by circuit breaker", "operation", operation, "error", err)
	} else {
		metrics.RecordChatRequest(operation, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return "", errors.Wrap(err, errors.ErrCodeExternalService, fmt.Sprintf("chat %s failed", operation))
}

func (c *Client) do(ctx context.Context, method, path, matchID string, body []byte) ([]byte, error) {
	token, err := security.IssueServiceToken(c.secret, Audience, matchID, tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue service token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if matchID != "" {
		req.Header.Set("Idempotency-Key", matchID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
