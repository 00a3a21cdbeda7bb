package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/service"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
)

const (
	MessageTypeStats  = "stats"
	MessageTypeResult = "result"
	MessageTypeAck    = "ack"
	MessageTypeError  = "error"
)

// GameServerScorer is recorded as the scorer of games finished over the feed.
const GameServerScorer = "game server"

// FeedMessage is one inbound frame from the game server. Stats frames carry
// Players; result frames carry WinningTeam and MVPs (by IGN).
type FeedMessage struct {
	Type        string                 `json:"type"`
	GameID      int64                  `json:"gameid"`
	Players     map[string]PlayerStats `json:"players,omitempty"`
	WinningTeam int                    `json:"winningteam,omitempty"`
	MVPs        []string               `json:"mvps,omitempty"`
}

// Reply acknowledges or rejects one FeedMessage.
type Reply struct {
	Type     string `json:"type"`
	GameID   int64  `json:"gameid,omitempty"`
	Failures int    `json:"failures,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Scorer interface {
	Score(ctx context.Context, req service.ScoreRequest) (*service.ScoreReport, error)
}

// Feed is the websocket endpoint the game server reports finished games to.
// Connections must present WEBSOCKET_TOKEN as a bearer token.
type Feed struct {
	token  string
	hub    *StatsHub
	scorer Scorer
	logger zerolog.Logger
}

func NewFeed(cfg *config.Config, hub *StatsHub, scorer Scorer, logger zerolog.Logger) *Feed {
	return &Feed{token: cfg.WebsocketToken, hub: hub, scorer: scorer, logger: logger}
}

func (f *Feed) authorized(r *http.Request) bool {
	if f.token == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(f.token)) == 1
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		f.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("feed connection refused, bad or missing token")
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		f.logger.Error().Err(err).Msg("ws accept failed")
		return
	}
	conn.SetReadLimit(constants.StatsMessageLimit)

	logger := f.logger.With().Str("remote_addr", r.RemoteAddr).Logger()
	logger.Info().Msg("game server connected")
	defer func() {
		if err := conn.CloseNow(); err != nil {
			logger.Debug().Err(err).Msg("close conn")
		}
	}()

	f.readLoop(r.Context(), conn, logger)
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn, logger zerolog.Logger) {
	for {
		var msg FeedMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				logger.Info().Msg("game server disconnected")
			default:
				logger.Warn().Err(err).Msg("feed read failed")
			}
			return
		}

		reply := f.handle(ctx, msg, logger)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			logger.Warn().Err(err).Msg("feed write failed")
			return
		}
	}
}

func (f *Feed) handle(ctx context.Context, msg FeedMessage, logger zerolog.Logger) Reply {
	log := logger.With().Str("type", msg.Type).Int64("game_id", msg.GameID).Logger()

	var (
		failures int
		err      error
	)
	switch msg.Type {
	case MessageTypeStats:
		err = f.hub.Put(StatsMessage{Type: msg.Type, GameID: msg.GameID, Players: msg.Players})
		if err == nil {
			log.Debug().Int("players", len(msg.Players)).Msg("stats buffered")
		}
	case MessageTypeResult:
		failures, err = f.score(ctx, msg)
	default:
		err = fmt.Errorf("unsupported message type %q", msg.Type)
	}

	if err != nil {
		log.Warn().Err(err).Msg("feed message rejected")
		return Reply{Type: MessageTypeError, GameID: msg.GameID, Error: err.Error()}
	}
	return Reply{Type: MessageTypeAck, GameID: msg.GameID, Failures: failures}
}

// score is detached from the connection context.
func (f *Feed) score(ctx context.Context, msg FeedMessage) (int, error) {
	if f.scorer == nil {
		return 0, errors.New("scoring over the feed is disabled")
	}
	if len(msg.Players) > 0 {
		if err := f.hub.Put(StatsMessage{Type: MessageTypeStats, GameID: msg.GameID, Players: msg.Players}); err != nil {
			return 0, err
		}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.RequestTimeout)
	defer cancel()

	report, err := f.scorer.Score(ctx, service.ScoreRequest{
		GameID:      msg.GameID,
		WinningTeam: msg.WinningTeam,
		MVPIGNs:     msg.MVPs,
		ScoredBy:    GameServerScorer,
	})
	if err != nil {
		return 0, err
	}
	return report.Failures(), nil
}
