package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Feed watches the curve account over the PubSub websocket. Each account
// change is diffed against the previous state to synthesize a trade event;
// the slot number keys deduplication since account notifications carry no
// transaction signature.
type Feed struct {
	wsURL  string
	curve  string
	logger *slog.Logger

	prev *domain.BondingCurveReserves
}

var _ domain.EventFeed = (*Feed)(nil)

// NewFeed creates a Feed over the curve account's change stream.
func NewFeed(wsURL, curve string, logger *slog.Logger) *Feed {
	return &Feed{
		wsURL:  wsURL,
		curve:  curve,
		logger: logger.With(slog.String("component", "solana_feed")),
	}
}

func (f *Feed) VenueID() domain.VenueID { return domain.VenueSolana }

// subscribeRequest is the accountSubscribe JSON-RPC envelope.
type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// accountNotification is the subset of the notification envelope we consume.
type accountNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Data []string `json:"data"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Run connects, subscribes, and forwards synthesized trade events until the
// context ends or the connection drops.
func (f *Feed) Run(ctx context.Context, out chan<- domain.TradeEvent) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("solana feed: dial %s: %w: %w", f.wsURL, domain.ErrNetwork, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sub := subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "accountSubscribe",
		Params: []any{
			f.curve,
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("solana feed: subscribe: %w: %w", domain.ErrNetwork, err)
	}
	f.logger.Info("subscribed", slog.String("curve", f.curve))

	// Close the socket when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-done:
		}
	}()

	go f.pingLoop(ctx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("solana feed: read: %w: %w", domain.ErrNetwork, err)
		}
		ev, ok := f.decode(raw)
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// decode diffs the notified curve state against the previous one. The first
// notification only seeds the baseline.
func (f *Feed) decode(raw []byte) (domain.TradeEvent, bool) {
	var note accountNotification
	if err := json.Unmarshal(raw, &note); err != nil || note.Method != "accountNotification" {
		return domain.TradeEvent{}, false
	}
	if len(note.Params.Result.Value.Data) == 0 {
		return domain.TradeEvent{}, false
	}
	data, err := base64.StdEncoding.DecodeString(note.Params.Result.Value.Data[0])
	if err != nil {
		f.logger.Debug("bad account data encoding", slog.Any("error", err))
		return domain.TradeEvent{}, false
	}
	reserves, err := decodeCurve(data)
	if err != nil {
		f.logger.Debug("bad curve account data", slog.Any("error", err))
		return domain.TradeEvent{}, false
	}
	state := reserves.(*domain.BondingCurveReserves)

	prev := f.prev
	f.prev = state
	if prev == nil {
		return domain.TradeEvent{}, false
	}

	baseDelta := new(big.Int).Sub(prev.RealBase, state.RealBase)
	quoteDelta := new(big.Int).Sub(state.RealQuote, prev.RealQuote)

	ev := domain.TradeEvent{
		Venue:      domain.VenueSolana,
		TxID:       fmt.Sprintf("%s:%d", f.curve, note.Params.Result.Context.Slot),
		ObservedAt: time.Now(),
	}
	switch {
	case baseDelta.Sign() > 0 && quoteDelta.Sign() > 0:
		// Tokens left the curve, SOL came in: a buy.
		ev.Side = domain.SideBuy
		ev.BaseAmount = baseDelta
		ev.QuoteAmount = quoteDelta
	case baseDelta.Sign() < 0 && quoteDelta.Sign() < 0:
		ev.Side = domain.SideSell
		ev.BaseAmount = new(big.Int).Neg(baseDelta)
		ev.QuoteAmount = new(big.Int).Neg(quoteDelta)
	default:
		// No net trade (deposit, migration, or duplicate notification).
		return domain.TradeEvent{}, false
	}
	return ev, true
}
