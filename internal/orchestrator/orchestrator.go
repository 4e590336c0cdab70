// Package orchestrator wires together the bus, detectors, quality scorer,
// paper-trading engine, and alert dispatcher into one running pipeline: a
// Stage-enum-dispatch coordinator in the same shape as the reference
// trading daemon's orchestrator, generalized from discovery/forecast/order
// stages to this system's stream consumers and periodic producers.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/market-analytics/internal/alert"
	"github.com/phenomenon0/market-analytics/internal/bus"
	"github.com/phenomenon0/market-analytics/internal/detect"
	"github.com/phenomenon0/market-analytics/internal/events"
	"github.com/phenomenon0/market-analytics/internal/logger"
	"github.com/phenomenon0/market-analytics/internal/market"
	"github.com/phenomenon0/market-analytics/internal/metrics"
	"github.com/phenomenon0/market-analytics/internal/paper"
	"github.com/phenomenon0/market-analytics/internal/quality"
	"github.com/phenomenon0/market-analytics/internal/streaming"
)

// Stage identifies one stream consumer or periodic producer the
// orchestrator runs as its own goroutine.
type Stage string

const (
	StreamMarketSnapshot Stage = "stream_market_snapshot"
	StreamPriceChange    Stage = "stream_price_change"
	StreamTrade          Stage = "stream_trade"
	StreamOrderBook      Stage = "stream_order_book"
	StreamNews           Stage = "stream_news"
	StreamCryptoPrice    Stage = "stream_crypto_price"
	StageDailyReport     Stage = "stage_daily_report"
	StagePositionTrack   Stage = "stage_position_track"
)

// StageResult reports one stage invocation's outcome, matching the
// reference daemon's StageResult shape for status reporting.
type StageResult struct {
	Stage     Stage
	Success   bool
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// Config configures polling cadences the orchestrator's periodic
// producers use.
type Config struct {
	MarketSyncInterval    time.Duration
	OrderBookInterval     time.Duration
	TradeHistoryInterval  time.Duration
	NewsInterval          time.Duration
	DailyReportInterval   time.Duration
	PositionTrackInterval time.Duration
	MaxTrackedMarkets     int
	CryptoSymbols         []string

	// SignalCorroborationWindow bounds how recently two distinct detector
	// types must each have fired on the same market for both to count
	// toward the quality scorer's anomalySignalCount.
	SignalCorroborationWindow time.Duration
}

// DefaultConfig returns sane polling cadences for a single-process deployment.
func DefaultConfig() Config {
	return Config{
		MarketSyncInterval:        5 * time.Minute,
		OrderBookInterval:         30 * time.Second,
		TradeHistoryInterval:      20 * time.Second,
		NewsInterval:              10 * time.Minute,
		DailyReportInterval:       1 * time.Hour,
		PositionTrackInterval:     15 * time.Second,
		MaxTrackedMarkets:         50,
		CryptoSymbols:             []string{"btcusdt", "ethusdt"},
		SignalCorroborationWindow: 15 * time.Minute,
	}
}

// Orchestrator owns the bus, every detector, the quality scorer, the
// paper-trading engine, and the alert dispatcher, and runs one
// context-cancellable goroutine per periodic producer plus one per
// stream consumer.
type Orchestrator struct {
	cfg     Config
	bus     *bus.Bus
	metrics *metrics.Metrics
	hub     *streaming.Hub

	metadata     market.MetadataService
	trades       market.TradeHistoryService
	orderbooks   market.OrderBookService
	cryptoStream market.CryptoTickerStream
	news         market.NewsFeed

	priceSpike    *detect.PriceSpikeDetector
	volumeSpike   *detect.VolumeSpikeDetector
	whale         *detect.WhaleDetector
	divergence    *detect.MarketDivergenceDetector
	imbalance     *detect.OrderBookImbalanceDetector
	spread        *detect.SpreadDetector
	newsImpact    *detect.NewsImpactDetector
	cryptoCache   *detect.CryptoMarketCache
	cryptoDetect  *detect.CryptoDivergenceDetector

	scorer     *quality.Calculator
	paperEng   *paper.Engine
	dispatcher *alert.Dispatcher

	mu            sync.RWMutex
	running       bool
	stopCh        chan struct{}
	activeMarkets map[string]events.MarketSnapshot

	signalMu      sync.Mutex
	recentSignals map[string]map[events.AnomalyType]time.Time

	onStage func(StageResult)
}

// New constructs an Orchestrator. Any of the market.* dependencies may be
// nil to run with that stream disabled (useful for tests).
func New(
	cfg Config,
	b *bus.Bus,
	m *metrics.Metrics,
	hub *streaming.Hub,
	metadata market.MetadataService,
	trades market.TradeHistoryService,
	orderbooks market.OrderBookService,
	cryptoStream market.CryptoTickerStream,
	news market.NewsFeed,
	paperEng *paper.Engine,
	dispatcher *alert.Dispatcher,
) *Orchestrator {
	cache := detect.NewCryptoMarketCache()

	return &Orchestrator{
		cfg:           cfg,
		bus:           b,
		metrics:       m,
		hub:           hub,
		metadata:      metadata,
		trades:        trades,
		orderbooks:    orderbooks,
		cryptoStream:  cryptoStream,
		news:          news,
		priceSpike:    detect.NewPriceSpikeDetector(),
		volumeSpike:   detect.NewVolumeSpikeDetector(),
		whale:         detect.NewWhaleDetector(),
		divergence:    detect.NewMarketDivergenceDetector(),
		imbalance:     detect.NewOrderBookImbalanceDetector(),
		spread:        detect.NewSpreadDetector(),
		newsImpact:    detect.NewNewsImpactDetector(),
		cryptoCache:   cache,
		cryptoDetect:  detect.NewCryptoDivergenceDetector(cache),
		scorer:        quality.NewCalculator(),
		paperEng:      paperEng,
		dispatcher:    dispatcher,
		stopCh:        make(chan struct{}),
		activeMarkets: make(map[string]events.MarketSnapshot),
		recentSignals: make(map[string]map[events.AnomalyType]time.Time),
	}
}

// OnStage sets a callback invoked after every stage run, for status
// reporting.
func (o *Orchestrator) OnStage(fn func(StageResult)) {
	o.onStage = fn
}

// Start launches every periodic producer and stream consumer as its own
// goroutine. It returns immediately; the pipeline runs until ctx is
// cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already running")
	}
	o.running = true
	o.stopCh = make(chan struct{})
	o.mu.Unlock()

	go o.marketSyncLoop(ctx)
	go o.orderBookLoop(ctx)
	go o.tradeHistoryLoop(ctx)
	go o.newsLoop(ctx)
	go o.cryptoStreamLoop(ctx)
	go o.dailyReportLoop(ctx)
	go o.positionTrackLoop(ctx)

	go o.consume(ctx, bus.TopicMarketSnapshot, StreamMarketSnapshot, o.handleMarketSnapshot)
	go o.consume(ctx, bus.TopicPriceChange, StreamPriceChange, o.handlePriceChange)
	go o.consume(ctx, bus.TopicTrade, StreamTrade, o.handleTrade)
	go o.consume(ctx, bus.TopicOrderBook, StreamOrderBook, o.handleOrderBook)
	go o.consume(ctx, bus.TopicNews, StreamNews, o.handleNews)
	go o.consume(ctx, bus.TopicCryptoPrice, StreamCryptoPrice, o.handleCryptoPrice)

	return nil
}

// Stop signals every background goroutine to exit.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		close(o.stopCh)
		o.running = false
	}
}

// IsRunning reports whether Start has been called without a matching Stop.
func (o *Orchestrator) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// ActiveMarketCount returns how many markets are currently tracked.
func (o *Orchestrator) ActiveMarketCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeMarkets)
}

// --- Generic stream consumer ---

func (o *Orchestrator) consume(ctx context.Context, topic bus.Topic, stage Stage, handle func(interface{}) error) {
	ch := o.bus.Subscribe(topic)
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case raw := <-ch:
			start := time.Now()
			err := handle(raw)
			o.report(stage, start, err)
		}
	}
}

func (o *Orchestrator) report(stage Stage, start time.Time, err error) {
	result := StageResult{
		Stage:     stage,
		Success:   err == nil,
		Duration:  time.Since(start),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		result.Error = err.Error()
		logger.Error("orchestrator: stage %s failed: %v", stage, err)
	}
	if o.metrics != nil {
		o.metrics.RecordStage(string(stage), result.Duration.Seconds())
	}
	if o.onStage != nil {
		o.onStage(result)
	}
}

// --- Periodic producers ---

func (o *Orchestrator) marketSyncLoop(ctx context.Context) {
	if o.metadata == nil {
		return
	}
	ticker := time.NewTicker(o.cfg.MarketSyncInterval)
	defer ticker.Stop()

	o.syncMarkets(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.syncMarkets(ctx)
		}
	}
}

func (o *Orchestrator) syncMarkets(ctx context.Context) {
	start := time.Now()
	snapshots, err := o.metadata.ListActiveMarkets(ctx, o.cfg.MaxTrackedMarkets, 0)
	if o.metrics != nil {
		o.metrics.RecordMarketFetch("gamma", time.Since(start).Seconds(), err)
	}
	if err != nil {
		logger.Warn("orchestrator: market sync failed: %v", err)
		return
	}

	o.mu.Lock()
	for _, s := range snapshots {
		o.activeMarkets[s.MarketID] = s
	}
	count := len(o.activeMarkets)
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.UpdateActiveMarkets(count)
	}
	for _, s := range snapshots {
		o.bus.Publish(bus.TopicMarketSnapshot, s)
	}
}

func (o *Orchestrator) orderBookLoop(ctx context.Context) {
	if o.orderbooks == nil {
		return
	}
	ticker := time.NewTicker(o.cfg.OrderBookInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			for _, marketID := range o.snapshotMarketIDs() {
				start := time.Now()
				snap, err := o.orderbooks.GetOrderBook(ctx, marketID)
				if o.metrics != nil {
					o.metrics.RecordMarketFetch("clob_book", time.Since(start).Seconds(), err)
				}
				if err != nil {
					continue
				}
				o.bus.Publish(bus.TopicOrderBook, toOrderBookEvent(snap))
			}
		}
	}
}

func (o *Orchestrator) tradeHistoryLoop(ctx context.Context) {
	if o.trades == nil {
		return
	}
	ticker := time.NewTicker(o.cfg.TradeHistoryInterval)
	defer ticker.Stop()
	since := time.Now().UTC()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			cutoff := since
			since = time.Now().UTC()
			for _, marketID := range o.snapshotMarketIDs() {
				start := time.Now()
				fetched, err := o.trades.ListRecentTrades(ctx, marketID, cutoff)
				if o.metrics != nil {
					o.metrics.RecordMarketFetch("clob_trades", time.Since(start).Seconds(), err)
				}
				if err != nil {
					continue
				}
				for _, t := range fetched {
					o.bus.Publish(bus.TopicTrade, toTradeEvent(t))
				}
			}
		}
	}
}

func (o *Orchestrator) newsLoop(ctx context.Context) {
	if o.news == nil {
		return
	}
	ticker := time.NewTicker(o.cfg.NewsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			for _, snap := range o.snapshotMarkets() {
				start := time.Now()
				items, err := o.news.SearchRecent(ctx, snap.Category, time.Now().Add(-24*time.Hour))
				if o.metrics != nil {
					o.metrics.RecordMarketFetch("rss_news", time.Since(start).Seconds(), err)
				}
				if err != nil {
					continue
				}
				for _, h := range items {
					o.bus.Publish(bus.TopicNews, events.NewsItem{
						MarketID:  snap.MarketID,
						Headline:  h.Title,
						Source:    h.Source,
						URL:       h.Link,
						Relevance: 0.8,
						TS:        h.Published,
					})
				}
			}
		}
	}
}

func (o *Orchestrator) cryptoStreamLoop(ctx context.Context) {
	if o.cryptoStream == nil {
		return
	}
	ticks, err := o.cryptoStream.Start(ctx, o.cfg.CryptoSymbols)
	if err != nil {
		logger.Error("orchestrator: crypto stream failed to start: %v", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			o.bus.Publish(bus.TopicCryptoPrice, tick)
		}
	}
}

func (o *Orchestrator) dailyReportLoop(ctx context.Context) {
	if o.paperEng == nil {
		return
	}
	ticker := time.NewTicker(o.cfg.DailyReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			start := time.Now()
			report := o.paperEng.GetDailyReport(time.Now().UTC())
			if o.metrics != nil {
				o.metrics.UpdatePaperState(report.Balance, drawdownPct(report), len(report.OpenPositions), report.LossStreak, report.Paused)
			}
			if o.hub != nil {
				o.hub.BroadcastStatus(report)
			}
			o.report(StageDailyReport, start, nil)
		}
	}
}

func (o *Orchestrator) positionTrackLoop(ctx context.Context) {
	if o.paperEng == nil {
		return
	}
	ticker := time.NewTicker(o.cfg.PositionTrackInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			start := time.Now()
			now := time.Now().UTC()
			for _, snap := range o.snapshotMarkets() {
				closed := o.paperEng.CheckAndClose(snap.MarketID, snap.YesPrice, nil, now)
				if closed != nil {
					if o.metrics != nil {
						o.metrics.RecordPositionClosed(string(closed.Reason))
					}
					if o.hub != nil {
						o.hub.BroadcastTrade(closed)
					}
				}
			}
			o.report(StagePositionTrack, start, nil)
		}
	}
}

func drawdownPct(r paper.DailyReport) float64 {
	start, _ := r.StartingBalance.Float64()
	bal, _ := r.Balance.Float64()
	if start <= 0 || bal >= start {
		return 0
	}
	return (start - bal) / start
}

func (o *Orchestrator) snapshotMarketIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]string, 0, len(o.activeMarkets))
	for id := range o.activeMarkets {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) snapshotMarkets() []events.MarketSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]events.MarketSnapshot, 0, len(o.activeMarkets))
	for _, s := range o.activeMarkets {
		out = append(out, s)
	}
	return out
}

func toOrderBookEvent(s market.OrderBookSnapshot) events.OrderBook {
	ob := events.OrderBook{MarketID: s.MarketID, TS: s.TS}
	if bid, ok := s.BestBid(); ok {
		ob.BestBid = bid.Price
		ob.BidDepth = bid.Size
	}
	if ask, ok := s.BestAsk(); ok {
		ob.BestAsk = ask.Price
		ob.AskDepth = ask.Size
	}
	return ob
}

func toTradeEvent(t market.Trade) events.Trade {
	side := events.SideBuy
	if t.Side == "SELL" {
		side = events.SideSell
	}
	return events.Trade{
		MarketID:      t.MarketID,
		TraderAddress: t.Taker,
		Side:          side,
		Size:          decimal.NewFromFloat(t.Size),
		Price:         decimal.NewFromFloat(t.Price),
		TS:            t.TS,
	}
}

// --- Stream consumer handlers ---

func (o *Orchestrator) handleMarketSnapshot(raw interface{}) error {
	snap, ok := raw.(events.MarketSnapshot)
	if !ok {
		return fmt.Errorf("unexpected payload on market snapshot stream: %T", raw)
	}
	o.cryptoCache.Put(snap, time.Now().UTC())

	anomaly, err := o.volumeSpike.Process(snap)
	if err != nil {
		return err
	}
	o.emit(anomaly, snap)

	nearRes, err := o.divergence.NearResolution(snap)
	if err != nil {
		return err
	}
	o.emit(nearRes, snap)

	sumDiv, err := o.divergence.PriceSumDivergence(snap)
	if err != nil {
		return err
	}
	o.emit(sumDiv, snap)
	return nil
}

func (o *Orchestrator) handlePriceChange(raw interface{}) error {
	pc, ok := raw.(events.PriceChange)
	if !ok {
		return fmt.Errorf("unexpected payload on price change stream: %T", raw)
	}
	anomaly, err := o.priceSpike.Process(pc)
	if err != nil {
		return err
	}
	o.emit(anomaly, o.lookupSnapshot(pc.MarketID))
	return nil
}

func (o *Orchestrator) handleTrade(raw interface{}) error {
	t, ok := raw.(events.Trade)
	if !ok {
		return fmt.Errorf("unexpected payload on trade stream: %T", raw)
	}
	anomaly, err := o.whale.Process(t)
	if err != nil {
		return err
	}
	o.emit(anomaly, o.lookupSnapshot(t.MarketID))
	return nil
}

func (o *Orchestrator) handleOrderBook(raw interface{}) error {
	ob, ok := raw.(events.OrderBook)
	if !ok {
		return fmt.Errorf("unexpected payload on order book stream: %T", raw)
	}

	imbalance, err := o.imbalance.Process(ob)
	if err != nil {
		return err
	}
	o.emit(imbalance, o.lookupSnapshot(ob.MarketID))

	spread, err := o.spread.Process(ob)
	if err != nil {
		return err
	}
	o.emit(spread, o.lookupSnapshot(ob.MarketID))

	return nil
}

func (o *Orchestrator) handleNews(raw interface{}) error {
	n, ok := raw.(events.NewsItem)
	if !ok {
		return fmt.Errorf("unexpected payload on news stream: %T", raw)
	}
	anomaly, err := o.newsImpact.Process(n)
	if err != nil {
		return err
	}
	o.emit(anomaly, o.lookupSnapshot(n.MarketID))
	return nil
}

func (o *Orchestrator) handleCryptoPrice(raw interface{}) error {
	p, ok := raw.(events.CryptoPrice)
	if !ok {
		return fmt.Errorf("unexpected payload on crypto price stream: %T", raw)
	}
	anomalies, err := o.cryptoDetect.Process(p, time.Now().UTC())
	if err != nil {
		return err
	}
	for _, a := range anomalies {
		o.emit(a, o.lookupSnapshot(a.MarketID))
	}
	return nil
}

func (o *Orchestrator) lookupSnapshot(marketID string) events.MarketSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activeMarkets[marketID]
}

// recordSignalCount records that anomalyType just fired for marketID and
// returns the number of distinct anomaly types that have fired for that
// market within the corroboration window, including this one, capped at 5
// per the scorer's anomalySignalCount domain.
func (o *Orchestrator) recordSignalCount(marketID string, anomalyType events.AnomalyType, now time.Time) int {
	o.signalMu.Lock()
	defer o.signalMu.Unlock()

	seen, ok := o.recentSignals[marketID]
	if !ok {
		seen = make(map[events.AnomalyType]time.Time)
		o.recentSignals[marketID] = seen
	}
	seen[anomalyType] = now

	cutoff := now.Add(-o.cfg.SignalCorroborationWindow)
	for t, seenAt := range seen {
		if seenAt.Before(cutoff) {
			delete(seen, t)
		}
	}

	count := len(seen)
	if count > 5 {
		count = 5
	}
	return count
}

// emit is the shared tail of every detector path: score the anomaly,
// try to open a paper position, dispatch an alert, and broadcast both to
// the metrics and streaming layers.
func (o *Orchestrator) emit(a *events.Anomaly, snap events.MarketSnapshot) {
	if a == nil {
		return
	}
	if o.metrics != nil {
		o.metrics.RecordAnomaly(string(a.Type), a.Severity)
	}
	if o.hub != nil {
		o.hub.BroadcastAnomaly(a)
	}
	o.bus.Publish(bus.TopicAnomaly, *a)

	now := time.Now().UTC()

	if snap.Question != "" {
		if a.Details.Extra == nil {
			a.Details.Extra = make(map[string]any)
		}
		a.Details.Extra["question"] = snap.Question
	}

	var endDate *time.Time
	var hasNews bool
	if snap.MarketID != "" {
		endDate = snap.EndDate
	}
	if a.Type == events.AnomalyNewsImpact {
		hasNews = true
	}

	signalCount := o.recordSignalCount(a.MarketID, a.Type, now)

	result := o.scorer.Score(quality.Input{
		Question:           snap.Question,
		Category:           snap.Category,
		EndDate:            endDate,
		Volume:             volumeFloat(snap),
		AnomalySignalCount: signalCount,
		HasNewsCatalyst:    hasNews,
		Now:                now,
	})

	if o.metrics != nil {
		o.metrics.RecordQualityScore(string(result.Type), result.Score, result.IsActionable(), result.Blocks)
	}

	if a.Details.Signal == events.SignalNone || !result.IsActionable() {
		if o.dispatcher != nil && o.metrics != nil {
			o.metrics.RecordAlertDropped("not_actionable")
		}
		return
	}
	a.Details.QualityScore = result.Score

	var position *paper.Position
	if o.paperEng != nil {
		direction := paper.DirectionYes
		if a.Details.Signal == events.SignalBuyNo {
			direction = paper.DirectionNo
		}
		price := decimal.NewFromFloat(a.Details.BuyPrice)
		position = o.paperEng.TryEnter(a.MarketID, a.Description, direction, price, result.Score, a.Details.Catalyst, result.HoursToResolution, now)
		if position != nil && o.metrics != nil {
			o.metrics.RecordPositionOpened(string(direction))
		}
		if position != nil && o.hub != nil {
			o.hub.BroadcastPosition(position)
		}
	}

	if o.dispatcher != nil {
		openCount := 0
		balance := 0.0
		if o.paperEng != nil {
			report := o.paperEng.GetDailyReport(now)
			openCount = len(report.OpenPositions)
			balance, _ = report.Balance.Float64()
		}
		outcome := o.dispatcher.Dispatch(*a, result, position, openCount, balance, snap.URL, now)
		if o.hub != nil {
			o.hub.BroadcastAlert(outcome)
		}
		if o.metrics != nil {
			if outcome.Sent {
				o.metrics.RecordAlertDispatched(string(a.Type))
			} else {
				o.metrics.RecordAlertDropped("gate")
			}
		}
	}
}

func volumeFloat(s events.MarketSnapshot) float64 {
	v, _ := s.Volume24h.Float64()
	return v
}
