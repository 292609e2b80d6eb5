package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crypto-signal-engine/internal/backtest"
	"crypto-signal-engine/internal/events"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
)

// analyzeRequest is the payload for POST /api/signals/analyze
type analyzeRequest struct {
	Pair    string          `json:"pair" binding:"required"`
	Candles []market.Candle `json:"candles" binding:"required"`
}

// handleAnalyze composes a signal from the submitted candles, validates it,
// and reports both the signal and the validation outcome.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := market.ValidateSeries(req.Candles); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log := logging.FromContext(c.Request.Context())

	sig := s.composer.Compose(req.Pair, req.Candles)
	s.bus.PublishSignalGenerated(sig.Pair, string(sig.Type), sig.Confidence)
	log.Debug("signal composed",
		"pair", sig.Pair, "type", string(sig.Type), "confidence", sig.Confidence)

	decision, err := s.validator.Validate(c.Request.Context(), &sig)
	if err != nil {
		log.Error("signal validation failed", "pair", req.Pair, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation unavailable"})
		return
	}

	if decision.Accepted {
		s.bus.PublishSignalAccepted(sig.Pair, string(sig.Type), sig.Confidence)
		if s.repo != nil {
			if err := s.repo.SaveSignal(c.Request.Context(), &sig); err != nil {
				log.Error("failed to persist signal", "pair", sig.Pair, "error", err)
			}
		}
	} else {
		s.bus.PublishSignalRejected(sig.Pair, string(sig.Type), decision.Reason)
	}

	c.JSON(http.StatusOK, gin.H{
		"signal":   sig,
		"accepted": decision.Accepted,
		"reason":   decision.Reason,
	})
}

// handleRecentSignals returns persisted signals, newest first
func (s *Server) handleRecentSignals(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	signals, err := s.repo.RecentSignals(c.Request.Context(), c.Query("pair"), limit)
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("failed to load signals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

// handleClearHistory drops all validator cooldown and fingerprint state
func (s *Server) handleClearHistory(c *gin.Context) {
	if err := s.validator.Clear(c.Request.Context()); err != nil {
		logging.FromContext(c.Request.Context()).Error("failed to clear validator history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// backtestRequest is the payload for POST /api/backtest. Omitted simulation
// parameters fall back to the server's configured defaults.
type backtestRequest struct {
	Pair           string          `json:"pair" binding:"required"`
	Candles        []market.Candle `json:"candles" binding:"required"`
	InitialBalance float64         `json:"initial_balance"`
	Sizing         string          `json:"sizing"`
	SizingValue    float64         `json:"sizing_value"`
	SlippagePct    float64         `json:"slippage_pct"`
	CommissionPct  float64         `json:"commission_pct"`
	TimeStopHours  float64         `json:"time_stop_hours"`
}

func (s *Server) backtestConfig(req backtestRequest) backtest.Config {
	cfg := s.config.BacktestDefaults
	if cfg.InitialBalance <= 0 {
		cfg = backtest.DefaultConfig(req.Pair)
	}
	cfg.Pair = req.Pair

	if req.InitialBalance > 0 {
		cfg.InitialBalance = req.InitialBalance
	}
	if req.Sizing != "" {
		cfg.Sizing = backtest.PositionSizing(req.Sizing)
	}
	if req.SizingValue > 0 {
		cfg.SizingValue = req.SizingValue
	}
	if req.SlippagePct > 0 {
		cfg.SlippagePct = req.SlippagePct
	}
	if req.CommissionPct > 0 {
		cfg.CommissionPct = req.CommissionPct
	}
	if req.TimeStopHours > 0 {
		cfg.TimeStopHours = req.TimeStopHours
	}
	return cfg
}

// handleBacktest runs a simulation synchronously, streaming progress over the
// event bus while it runs.
func (s *Server) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := s.backtestConfig(req)
	engine, err := backtest.NewEngine(cfg, s.composer, s.log)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := uuid.New().String()
	engine.SetProgressFunc(func(done, total int) {
		s.bus.PublishBacktestProgress(runID, req.Pair, done, total)
	})

	s.bus.Publish(events.Event{
		Type: events.EventBacktestStarted,
		Data: map[string]interface{}{"backtest_id": runID, "pair": req.Pair},
	})

	results, err := engine.Run(c.Request.Context(), req.Candles)
	if err != nil {
		s.bus.PublishBacktestFailed(runID, req.Pair, err.Error())
		status := http.StatusInternalServerError
		if errors.Is(err, backtest.ErrInsufficientData) || errors.Is(err, backtest.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	s.bus.PublishBacktestFinished(runID, req.Pair, results.TotalTrades, results.FinalBalance)

	if s.repo != nil {
		if savedID, err := s.repo.SaveBacktest(c.Request.Context(), results); err != nil {
			logging.FromContext(c.Request.Context()).Error("failed to persist backtest", "pair", req.Pair, "error", err)
		} else {
			runID = savedID
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"backtest_id": runID,
		"results":     results,
	})
}

// handleRecentBacktests lists persisted backtest summaries
func (s *Server) handleRecentBacktests(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := s.repo.ListBacktests(c.Request.Context(), limit)
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("failed to load backtests", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load backtests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"backtests": runs, "count": len(runs)})
}
