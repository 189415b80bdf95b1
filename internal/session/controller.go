// Package session runs a single timed attempt at a question set.
//
// A Controller moves through Loading → Active → Finalizing → Terminal. While
// Active it owns the answer and flag state, a countdown timer and the armed
// violation detectors. The timer and every detector publish into one violation
// channel; the controller finalizes on the first one only, guarded by a
// single-use latch owned by the instance.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/detector"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/timer"
)

const (
	// DefaultTerminalSetThreshold is the lowest set number offering early submit.
	DefaultTerminalSetThreshold = 5

	violationBuffer = 16
	timerCapability = "timer"
)

// Config holds the policy knobs of a controller.
type Config struct {
	TerminalSetThreshold int
	TickInterval         time.Duration
	KeyPolicy            detector.KeyPolicy
	Now                  func() time.Time
}

func (c Config) withDefaults() Config {
	if c.TerminalSetThreshold <= 0 {
		c.TerminalSetThreshold = DefaultTerminalSetThreshold
	}
	if c.TickInterval <= 0 {
		c.TickInterval = timer.DefaultTickInterval
	}
	if c.KeyPolicy.Finalize == nil && c.KeyPolicy.Suppress == nil {
		c.KeyPolicy = detector.DefaultKeyPolicy()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Deps are the collaborators of a controller. Translator, Answers,
// Violations and Notify are optional.
type Deps struct {
	Entitlements EntitlementChecker
	Loader       SetLoader
	Attempts     AttemptStarter
	Submitter    ResultSubmitter
	Translator   Translator
	Answers      AnswerStore
	Violations   ViolationRecorder
	Notify       func(Event)
	Log          zerolog.Logger
}

// Params identify the attempt. Position is nil for a non-chain set.
type Params struct {
	StudentID int
	ExamID    uuid.UUID
	SetID     uuid.UUID
	Position  *model.ChainPosition
}

// Controller is the state machine of one attempt.
type Controller struct {
	cfg    Config
	deps   Deps
	params Params
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// finalized is the single-use finalize latch.
	finalized atomic.Bool
	started   atomic.Bool

	mu                  sync.Mutex
	state               model.SessionState
	sc                  model.SessionContext
	set                 *model.LoadedSet
	answers             []*int
	flags               []bool
	current             int
	translated          bool
	translatedQuestions []model.Question
	record              *model.SubmissionRecord
	navigation          *model.Navigation
	tornDown            bool

	countdown  *timer.Timer
	table      *detector.CapabilityTable
	monitor    *detector.Monitor
	violations chan model.Violation

	done      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a controller in the Loading state. Call Start to run it.
func New(cfg Config, deps Deps, params Params) *Controller {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		cfg:        cfg,
		deps:       deps,
		params:     params,
		ctx:        ctx,
		cancel:     cancel,
		state:      model.SessionStateLoading,
		table:      detector.NewCapabilityTable(),
		violations: make(chan model.Violation, violationBuffer),
		done:       make(chan struct{}),
		closed:     make(chan struct{}),
	}
	c.log = deps.Log.With().
		Str("component", "session_controller").
		Int("student_id", params.StudentID).
		Str("exam_id", params.ExamID.String()).
		Str("set_id", params.SetID.String()).
		Logger()
	c.monitor = detector.NewMonitor(c.table, c.publish, cfg.Now, detector.Defaults(cfg.KeyPolicy)...)
	return c
}

// Start verifies access and loads content concurrently, then enters Active.
// Any failure here is fatal; the controller stays in Loading and should be closed.
// A controller closed before or during loading returns ErrClosed and never arms.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	var (
		wg        sync.WaitGroup
		hasAccess bool
		accessErr error
		loaded    *model.LoadedSet
		loadErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		hasAccess, accessErr = c.deps.Entitlements.HasAccess(ctx, c.params.StudentID, c.params.ExamID)
	}()
	go func() {
		defer wg.Done()
		loaded, loadErr = c.deps.Loader.Load(ctx, c.params.SetID)
	}()
	wg.Wait()

	if accessErr != nil {
		return fmt.Errorf("%w: verify entitlement: %v", ErrLoadFailure, accessErr)
	}
	if !hasAccess {
		return ErrAccessDenied
	}
	if loadErr != nil {
		return fmt.Errorf("%w: %v", ErrLoadFailure, loadErr)
	}
	if loaded == nil || len(loaded.Questions) == 0 {
		return fmt.Errorf("%w: set has no questions", ErrLoadFailure)
	}

	attempt, err := c.deps.Attempts.Begin(ctx, c.params.StudentID, c.params.ExamID, c.params.SetID)
	if err != nil {
		return fmt.Errorf("begin attempt: %w", err)
	}

	sc := c.buildContext(loaded, attempt.StartedAt)
	n := len(loaded.Questions)
	answers := make([]*int, n)
	if c.deps.Answers != nil {
		restored, err := c.deps.Answers.Restore(ctx, sc, loaded.Questions)
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to restore autosaved answers")
		}
		copy(answers, restored)
	}

	countdown := timer.New(
		func() {
			c.publish(model.Violation{Capability: timerCapability, Reason: model.ReasonTime, At: c.cfg.Now()})
		},
		timer.WithClock(c.cfg.Now),
		timer.WithTickInterval(c.cfg.TickInterval),
		timer.WithOnTick(func(remaining time.Duration) {
			c.emit(EventTick, map[string]float64{"remaining_seconds": remaining.Seconds()})
		}),
	)

	// Arming happens under mu so a concurrent Close either sees the armed
	// monitor and countdown or makes Start bail out here.
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ErrClosed
	}
	c.countdown = countdown
	c.sc = sc
	c.set = loaded
	c.answers = answers
	c.flags = make([]bool, n)
	if err := c.monitor.Arm(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("arm detectors: %w", err)
	}
	c.state = model.SessionStateActive
	c.mu.Unlock()

	go c.consume()

	c.log.Info().
		Int("set_number", sc.SetNumber).
		Bool("chain", sc.IsChain).
		Time("started_at", sc.SessionStart).
		Msg("Session active")

	countdown.StartAt(sc.SessionStart, time.Duration(loaded.Set.TimeLimitMinutes)*time.Minute)
	c.emit(EventSnapshot, c.Snapshot())
	return nil
}

func (c *Controller) buildContext(loaded *model.LoadedSet, start time.Time) model.SessionContext {
	sc := model.SessionContext{
		StudentID:    c.params.StudentID,
		ExamID:       c.params.ExamID,
		SetID:        c.params.SetID,
		SetNumber:    loaded.Set.SetNumber,
		SessionStart: start,
	}
	if p := c.params.Position; p != nil {
		sc.IsChain = true
		sc.SetNumber = p.SetNumber
		sc.ChainLength = p.ChainLength
		sc.SetNumberToSetID = make(map[int]uuid.UUID, len(p.SetNumberToSetID))
		for k, v := range p.SetNumberToSetID {
			sc.SetNumberToSetID[k] = v
		}
	}
	return sc
}

// consume finalizes on the first violation. Later ones are only reported.
func (c *Controller) consume() {
	for {
		select {
		case v := <-c.violations:
			c.emit(EventViolation, v)
			won := c.Finalize(c.ctx, v.Reason)
			c.recordViolation(v, won)
		case <-c.done:
			return
		case <-c.closed:
			return
		}
	}
}

// publish is the sink of the timer and every detector. It never blocks.
func (c *Controller) publish(v model.Violation) {
	if c.finalized.Load() {
		return
	}
	select {
	case c.violations <- v:
	default:
		c.log.Debug().Str("reason", string(v.Reason)).Msg("Violation buffer full, dropping")
	}
}

func (c *Controller) recordViolation(v model.Violation, finalizing bool) {
	if c.deps.Violations == nil {
		return
	}
	rec := model.ViolationRecord{
		StudentID:  c.params.StudentID,
		ExamID:     c.params.ExamID,
		SetID:      c.params.SetID,
		Violation:  v,
		Finalizing: finalizing,
	}
	if err := c.deps.Violations.RecordViolation(context.WithoutCancel(c.ctx), rec); err != nil {
		c.log.Warn().Err(err).Msg("Failed to record violation")
	}
}

// Finalize ends the session exactly once. It reports whether this call won the latch.
func (c *Controller) Finalize(ctx context.Context, reason model.FinalizeReason) bool {
	c.mu.Lock()
	if c.state != model.SessionStateActive {
		c.mu.Unlock()
		return false
	}
	if !c.finalized.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return false
	}
	c.state = model.SessionStateFinalizing
	sc := c.sc
	answers := append([]*int(nil), c.answers...)
	key := c.set.AnswerKey()
	c.mu.Unlock()

	c.stopTimer()
	c.monitor.Disarm()

	now := c.cfg.Now()
	minutes, seconds := Elapsed(now.Sub(sc.SessionStart))
	total := len(key)
	score := Score(answers, key)

	rec := &model.SubmissionRecord{
		ID:               uuid.New(),
		StudentID:        sc.StudentID,
		ExamID:           sc.ExamID,
		SetID:            sc.SetID,
		SetNumber:        sc.SetNumber,
		Score:            score,
		TotalQuestions:   total,
		Accuracy:         Accuracy(score, total),
		TimeTaken:        FormatTimeTaken(minutes),
		TimeTakenMinutes: minutes,
		TimeTakenSeconds: seconds,
		Answers:          answers,
		Reason:           reason,
		CreatedAt:        now,
	}

	c.log.Info().
		Str("reason", string(reason)).
		Int("score", score).
		Int("total", total).
		Int("seconds", seconds).
		Msg("Finalizing session")

	nav := c.deps.Submitter.SubmitOutcome(context.WithoutCancel(ctx), sc, rec)

	c.mu.Lock()
	c.state = model.SessionStateTerminal
	c.record = rec
	c.navigation = &nav
	c.mu.Unlock()

	c.emit(EventNavigate, nav)
	close(c.done)
	return true
}

// SelectAnswer records option for the current question.
func (c *Controller) SelectAnswer(ctx context.Context, option int) error {
	c.mu.Lock()
	if c.state != model.SessionStateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	q := c.set.Questions[c.current]
	if option < 0 || option >= len(q.Options) {
		c.mu.Unlock()
		return ErrInvalidOption
	}
	selected := option
	c.answers[c.current] = &selected
	sc := c.sc
	c.mu.Unlock()

	if c.deps.Answers != nil {
		if err := c.deps.Answers.SaveAnswer(ctx, sc, q.ID, option); err != nil {
			c.log.Warn().Err(err).Str("question_id", q.ID.String()).Msg("Autosave failed")
		}
	}
	return nil
}

// ToggleFlag flips the advisory review flag of the current question.
func (c *Controller) ToggleFlag() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionStateActive {
		return ErrNotActive
	}
	c.flags[c.current] = !c.flags[c.current]
	return nil
}

// Navigate moves between questions. target is only used by NavJump.
func (c *Controller) Navigate(dir model.NavDirection, target int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionStateActive {
		return ErrNotActive
	}

	n := len(c.set.Questions)
	switch dir {
	case model.NavPrev:
		if c.current > 0 {
			c.current--
		}
	case model.NavNext:
		if c.current < n-1 {
			c.current++
		}
	case model.NavJump:
		if target < 0 || target >= n {
			return ErrInvalidTarget
		}
		c.current = target
	default:
		return fmt.Errorf("unknown direction %q", dir)
	}
	return nil
}

// ToggleTranslation switches between source and translated text. A failed
// translation leaves the session on the source language.
func (c *Controller) ToggleTranslation(ctx context.Context) error {
	c.mu.Lock()
	if c.state != model.SessionStateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	if c.translated || c.translatedQuestions != nil {
		c.translated = !c.translated
		c.mu.Unlock()
		return nil
	}
	questions := c.set.Questions
	c.mu.Unlock()

	if c.deps.Translator == nil {
		c.emit(EventNotice, Notice{Level: "warning", Message: ErrTranslationFailure.Error()})
		return ErrTranslationFailure
	}

	translated, err := c.translate(ctx, questions)
	if err != nil {
		c.log.Warn().Err(err).Msg("Translation failed, staying on source language")
		c.emit(EventNotice, Notice{Level: "warning", Message: ErrTranslationFailure.Error()})
		return fmt.Errorf("%w: %v", ErrTranslationFailure, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionStateActive {
		return ErrNotActive
	}
	c.translatedQuestions = translated
	c.translated = true
	return nil
}

func (c *Controller) translate(ctx context.Context, questions []model.Question) ([]model.Question, error) {
	texts := make([]string, 0, len(questions)*5)
	for _, q := range questions {
		texts = append(texts, q.Text)
		texts = append(texts, q.Options...)
	}

	out, err := c.deps.Translator.Translate(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("translator returned %d texts, want %d", len(out), len(texts))
	}

	result := make([]model.Question, len(questions))
	i := 0
	for qi, q := range questions {
		q.TranslatedText = out[i]
		i++
		q.TranslatedOptions = append([]string(nil), out[i:i+len(q.Options)]...)
		i += len(q.Options)
		result[qi] = q
	}
	return result, nil
}

// HandleSignal dispatches a browser signal to the armed detectors.
func (c *Controller) HandleSignal(sig detector.Signal) detector.Outcome {
	if c.State() != model.SessionStateActive {
		return detector.Outcome{}
	}
	if sig.At.IsZero() {
		sig.At = c.cfg.Now()
	}
	out := c.monitor.Dispatch(sig)
	if out.Suppress {
		c.emit(EventBlocked, BlockedSignal{Kind: string(sig.Kind), Key: sig.Chord()})
	}
	return out
}

// RequestCapture invokes the session's screen-capture entry point.
func (c *Controller) RequestCapture(ctx context.Context) error {
	return c.table.Invoke(ctx, detector.CaptureDisplayMedia)
}

// ReportViolation publishes a violation observed outside the built-in
// detectors, such as a lost camera feed.
func (c *Controller) ReportViolation(reason model.FinalizeReason, detail string) error {
	if !reason.Valid() || reason == model.ReasonManual || reason == model.ReasonTime {
		return ErrInvalidReason
	}
	if c.State() != model.SessionStateActive {
		return ErrNotActive
	}
	c.publish(model.Violation{Capability: "external", Reason: reason, Detail: detail, At: c.cfg.Now()})
	return nil
}

// SubmitEarly finalizes voluntarily from the final question of a terminal set.
func (c *Controller) SubmitEarly(ctx context.Context) error {
	c.mu.Lock()
	if c.state != model.SessionStateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	allowed := c.canSubmitEarlyLocked()
	c.mu.Unlock()
	if !allowed {
		return ErrEarlySubmit
	}
	if !c.Finalize(ctx, model.ReasonManual) {
		return ErrNotActive
	}
	return nil
}

func (c *Controller) canSubmitEarlyLocked() bool {
	return c.current == len(c.set.Questions)-1 && c.sc.SetNumber >= c.cfg.TerminalSetThreshold
}

// Snapshot returns the client-visible state.
func (c *Controller) Snapshot() model.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := model.SessionSnapshot{
		State:      c.state,
		Context:    c.sc,
		Current:    c.current,
		Translated: c.translated,
	}
	if c.set == nil {
		return snap
	}

	source := c.set.Questions
	if c.translated && c.translatedQuestions != nil {
		source = c.translatedQuestions
	}
	snap.Set = c.set.Set
	snap.Questions = make([]model.QuestionForStudent, len(source))
	for i, q := range source {
		snap.Questions[i] = q.ForStudent()
	}
	snap.Answers = append([]*int(nil), c.answers...)
	snap.Flags = append([]bool(nil), c.flags...)
	if c.state == model.SessionStateActive {
		snap.CanSubmitEarly = c.canSubmitEarlyLocked()
		if c.countdown != nil {
			snap.RemainingSeconds = c.countdown.Remaining().Seconds()
		}
	}
	return snap
}

// State returns the current lifecycle state.
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Context returns the session context; zero until Active.
func (c *Controller) Context() model.SessionContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sc
}

// Navigation returns the hop decided at finalize, nil before Terminal.
func (c *Controller) Navigation() *model.Navigation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navigation
}

// Record returns the submitted record, nil before Terminal.
func (c *Controller) Record() *model.SubmissionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// Done is closed once the session reaches Terminal.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Closed is closed once Close is called.
func (c *Controller) Closed() <-chan struct{} {
	return c.closed
}

// Close tears the session down: stops the timer, disarms every detector and
// restores intercepted capabilities. It does not finalize. Safe to call repeatedly.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.tornDown = true
		c.mu.Unlock()
		c.stopTimer()
		c.monitor.Disarm()
		c.cancel()
		close(c.closed)
		c.log.Debug().Str("state", string(c.State())).Msg("Session closed")
	})
}

func (c *Controller) stopTimer() {
	c.mu.Lock()
	t := c.countdown
	c.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

func (c *Controller) emit(t EventType, data any) {
	if c.deps.Notify != nil {
		c.deps.Notify(Event{Type: t, Data: data})
	}
}
