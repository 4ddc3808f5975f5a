package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"brain-core/internal/regime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// tickFrame is the per-symbol payload pushed roughly once a second,
// matching §6's websocket contract literally.
type tickFrame struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	ChangePct  float64 `json:"change_pct"`
	Volume     float64 `json:"volume"`
	Sentiment  string  `json:"sentiment"`
	Regime     string  `json:"regime"`
	Volatility *float64 `json:"volatility,omitempty"`
	RiskLevel  string  `json:"risk_level"`
}

// liveSymbols tracks at-most-one connection per symbol (§6: "Per-symbol
// at-most-one live connection; duplicates rejected with policy-violation
// close").
var liveSymbols sync.Map // symbol -> struct{}

// websocket implements GET /ws/market/stream?symbol=…&token=…. It
// accepts the connection, pushes a boot frame with safe defaults so a
// client with a partially-initialized UI never crashes on missing
// fields, then pushes a tick frame roughly every second until the
// client disconnects or has sent nothing for 30 minutes.
func (s *Server) websocket(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		symbol = "BTCUSDT"
	}

	if _, already := liveSymbols.LoadOrStore(symbol, struct{}{}); already {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "duplicate live connection for symbol"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	defer liveSymbols.Delete(symbol)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	_ = conn.WriteJSON(tickFrame{Symbol: symbol, Sentiment: "neutral", Regime: "unknown", RiskLevel: "normal"})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		for {
			// a client that sends nothing for 30 minutes is disconnected
			_ = conn.SetReadDeadline(time.Now().Add(30 * time.Minute))
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := s.buildTickFrame(ctx, symbol)
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

func (s *Server) buildTickFrame(ctx context.Context, symbol string) tickFrame {
	frame := tickFrame{Symbol: symbol, Sentiment: "neutral", Regime: "unknown", RiskLevel: "normal"}

	price, err := s.App.Router.GetPrice(ctx, symbol)
	if err == nil {
		frame.Price = price.Snapshot.Price
		frame.ChangePct = price.Snapshot.ChangePct
		frame.Volume = price.Snapshot.Volume
	}

	result := s.App.DetectRegime(ctx, symbol)
	frame.Regime = string(result.Regime)
	frame.Volatility = result.Volatility
	frame.RiskLevel = riskLevelString(result.RiskLevel)
	if result.Regime == regime.RiskOn {
		frame.Sentiment = "bullish"
	} else if result.Regime == regime.RiskOff {
		frame.Sentiment = "bearish"
	}
	return frame
}

func riskLevelString(r regime.RiskLevel) string {
	if r == "" {
		return "normal"
	}
	return string(r)
}
