package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/basil/internal/config"
	"github.com/hammamikhairi/basil/internal/conversation"
	"github.com/hammamikhairi/basil/internal/display"
	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/engine"
	"github.com/hammamikhairi/basil/internal/gpt"
	"github.com/hammamikhairi/basil/internal/logger"
	"github.com/hammamikhairi/basil/internal/media"
	"github.com/hammamikhairi/basil/internal/speech"
	"github.com/hammamikhairi/basil/internal/timer"
)

// agentTimeout bounds one question or classification round trip.
const agentTimeout = 30 * time.Second

func newCookCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cook",
		Short: "Start the interactive cook-along (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCook(cmd.Context(), ctx)
		},
	}
}

func runCook(parent context.Context, cc *commandContext) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	rt, err := newCookRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	log := rt.log

	ui := display.NewUI(rt.engine, rt.engine)

	var notifier domain.Notifier = conversation.NewCLINotifier(log, ui.Printf)
	if rt.synth != nil {
		notifier = speech.NewSpeakingNotifier(notifier, rt.machine, log)
	}

	watcher := timer.NewWatcher(rt.machine, notifier, log,
		timer.WithWatchInterval(time.Duration(cfg.Timer.WatchIntervalSeconds)*time.Second),
		timer.WithPauseNudge(time.Duration(cfg.Timer.PauseNudgeSeconds)*time.Second),
		timer.WithIdleNudge(time.Duration(cfg.Timer.IdleNudgeSeconds)*time.Second),
		timer.WithAlmostDoneThreshold(cfg.Timer.AlmostDoneSeconds),
	)
	watcher.Start(ctx)
	defer watcher.Stop()

	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := rt.metrics.Serve(ctx, addr, log); err != nil {
				log.Error("metrics server: %v", err)
			}
		}()
	}

	ear, err := startEar(ctx, cfg, rt.machine, log)
	if err != nil {
		return err
	}
	if ear != nil && rt.synth != nil {
		for _, line := range speech.ListeningFillers() {
			rt.machine.Prefetch(line)
		}
	}

	app := newCLIApp(rt.engine, rt.machine, conversation.NewKeywordParser(log), rt.agent, ui, log)
	if ear != nil {
		app.voice = ear.C()
	}

	fmt.Println(display.RenderBanner())
	if ear != nil {
		fmt.Println(display.BannerStyle.Render("  Voice mode on. Say \"Hey Basil\" or type commands."))
	}
	fmt.Println(display.BannerStyle.Render("  Type 'help' for commands. Tab moves to the next step, Ctrl+T starts or pauses the timer."))
	fmt.Println()

	go func() {
		ui.WaitReady()
		app.run(ctx)
		ui.Quit()
	}()

	// Bubble Tea owns the terminal until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
	return nil
}

func startEar(ctx context.Context, cfg *config.Config, voice speech.Voice, log *logger.Logger) (*speech.Ear, error) {
	if !cfg.Voice.Enabled {
		return nil, nil
	}
	if _, err := os.Stat(cfg.Voice.Model); err != nil {
		return nil, fmt.Errorf("whisper model not found at %s: %w", cfg.Voice.Model, err)
	}
	ear := speech.NewEar(cfg.Voice.WhisperBin, cfg.Voice.Model, voice, log,
		speech.WithRecordDuration(time.Duration(cfg.Voice.RecordSeconds)*time.Second),
	)
	go ear.Run(ctx)
	log.Info("voice input enabled (bin=%s, model=%s)", cfg.Voice.WhisperBin, cfg.Voice.Model)
	return ear, nil
}

// ── Interactive loop ─────────────────────────────────────────────

// printer is the slice of the UI the loop writes to.
type printer interface {
	Println(a ...any)
	PrintChat(text string)
	PrintStep(text string)
	PrintInstruction(text string)
	PrintHint(text string)
	PrintUrgent(text string)
	PrintVoice(text string)
	InputChan() <-chan string
	Quit()
}

type cliApp struct {
	engine  *engine.Engine
	machine *engine.Machine
	parser  domain.IntentParser
	agent   *gpt.Agent // nil when no chat model is configured
	ui      printer
	log     *logger.Logger

	voice  <-chan string
	events chan engine.Event

	listed    []domain.RecipeSummary
	selected  *domain.Recipe
	cooking   *domain.Recipe
	sessionID string
	shown     map[string]bool // media already reported for this session
	tipsDue   bool            // tips arrived while the completion line was playing
}

func newCLIApp(eng *engine.Engine, m *engine.Machine, parser domain.IntentParser, agent *gpt.Agent, ui printer, log *logger.Logger) *cliApp {
	a := &cliApp{
		engine:  eng,
		machine: m,
		parser:  parser,
		agent:   agent,
		ui:      ui,
		log:     log,
		events:  make(chan engine.Event, 32),
		shown:   make(map[string]bool),
	}
	// Observers run on the machine's caller goroutine, which may be the
	// Bubble Tea loop itself; hand events over instead of printing here.
	m.Observe(func(ev engine.Event) {
		select {
		case a.events <- ev:
		default:
			log.Warn("event %s dropped: loop busy", ev.Kind)
		}
	})
	return a
}

// say prints a line and speaks it through whichever narrator is live.
func (a *cliApp) say(text string, p speech.Priority) {
	a.ui.PrintChat(text)
	a.machine.Announce(text, p)
}

func (a *cliApp) run(ctx context.Context) {
	a.say(speech.LineWelcome(), speech.PriorityNormal)
	a.ui.Println("")
	a.showRecipes(ctx)

	changes := a.engine.Changes()
	for {
		var input string
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			a.handleEvent(ev)
			continue
		case <-changes:
			a.followMedia()
			continue
		case line, ok := <-a.ui.InputChan():
			if !ok {
				return
			}
			input = line
		case line := <-a.voice:
			a.ui.PrintVoice(line)
			input = line
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		intent, err := a.parser.Parse(ctx, input)
		if err != nil {
			a.log.Error("parsing input: %v", err)
			continue
		}
		a.log.Debug("intent: %s (payload=%q)", intent.Type, intent.Payload)
		if quit := a.handleIntent(ctx, intent); quit {
			return
		}
	}
}

// handleIntent dispatches one intent. It reports whether the loop should
// end.
func (a *cliApp) handleIntent(ctx context.Context, intent *domain.Intent) bool {
	switch intent.Type {
	case domain.IntentHelp:
		a.showHelp()
	case domain.IntentListRecipes:
		a.showRecipes(ctx)
	case domain.IntentSelectRecipe:
		a.selectRecipe(ctx, intent.Payload)
	case domain.IntentStartCooking:
		a.startCooking(ctx)
	case domain.IntentAdvance:
		a.advance()
	case domain.IntentToggle:
		a.toggle()
	case domain.IntentPause:
		a.setRunning(false)
	case domain.IntentResume:
		a.setRunning(true)
	case domain.IntentRepeat:
		if !a.engine.Repeat() {
			a.say(speech.LineNoSession(), speech.PriorityLow)
		}
	case domain.IntentStatus:
		a.status()
	case domain.IntentTips:
		a.tips()
	case domain.IntentHush:
		a.machine.Hush()
	case domain.IntentClose:
		a.closeSession()
	case domain.IntentQuit:
		a.quit()
		return true
	case domain.IntentAsk:
		a.askQuestion(ctx, intent.Payload)
	default:
		return a.classifyAndDispatch(ctx, intent)
	}
	return false
}

// classifyAndDispatch sends unrecognised input to the chat model, then
// re-dispatches the result.
func (a *cliApp) classifyAndDispatch(ctx context.Context, original *domain.Intent) bool {
	if a.agent == nil || original.Payload == "" {
		a.say(speech.LineUnknown(original.Payload), speech.PriorityLow)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, agentTimeout)
	defer cancel()

	recipe, progress := a.agentContext()
	classified, err := a.agent.Classify(ctx, original.Payload, recipe, progress)
	if err != nil {
		a.log.Error("classify failed: %v", err)
		a.say(speech.LineUnknown(original.Payload), speech.PriorityLow)
		return false
	}
	if classified.Type == domain.IntentUnknown {
		a.say(speech.LineUnknown(original.Payload), speech.PriorityLow)
		return false
	}
	a.log.Info("classified %q -> %s", original.Payload, classified.Type)
	return a.handleIntent(ctx, classified)
}

func (a *cliApp) askQuestion(ctx context.Context, question string) {
	if a.agent == nil {
		a.say(speech.LineNoAgent(), speech.PriorityLow)
		return
	}
	a.ui.PrintHint(speech.LineThinking())

	ctx, cancel := context.WithTimeout(ctx, agentTimeout)
	defer cancel()

	recipe, progress := a.agentContext()
	answer, err := a.agent.AskQuestion(ctx, question, recipe, progress)
	if err != nil {
		a.log.Error("question failed: %v", err)
		a.say(speech.LineAgentError(), speech.PriorityNormal)
		return
	}
	a.say(answer, speech.PriorityHigh)
}

func (a *cliApp) agentContext() (*domain.Recipe, *gpt.Progress) {
	snap := a.engine.Snapshot()
	if !snap.Active() {
		return a.selected, nil
	}
	return a.cooking, &gpt.Progress{
		Active:    true,
		Finished:  snap.Phase == engine.PhaseFinished,
		StepIndex: snap.StepIndex,
		Remaining: snap.Remaining,
		Running:   snap.Running,
	}
}

// ── Recipes ──────────────────────────────────────────────────────

func (a *cliApp) showRecipes(ctx context.Context) {
	recipes, err := a.engine.ListRecipes(ctx)
	if err != nil {
		a.ui.PrintUrgent(fmt.Sprintf("Error loading recipes: %v", err))
		return
	}
	a.listed = recipes

	a.ui.PrintStep("Available recipes:")
	a.ui.Println("")
	for i, r := range recipes {
		a.ui.PrintInstruction(fmt.Sprintf("[%d] %s (%d steps, %s)", i+1, r.Title, r.StepCount, timer.FormatSpoken(r.TotalSecs)))
		if r.Description != "" {
			a.ui.PrintHint(r.Description)
		}
		a.ui.Println("")
	}
	a.ui.PrintChat("Pick a recipe by number or name, or type 'help' for commands.")
}

// resolveRecipe maps a list number or a name onto a recipe.
func (a *cliApp) resolveRecipe(ctx context.Context, payload string) (*domain.Recipe, error) {
	if n, err := strconv.Atoi(payload); err == nil {
		if n < 1 || n > len(a.listed) {
			return nil, domain.ErrNotFound
		}
		return a.engine.GetRecipe(ctx, a.listed[n-1].ID)
	}
	if r, err := a.engine.GetRecipe(ctx, payload); err == nil {
		return r, nil
	}
	matches, err := a.engine.SearchRecipes(ctx, payload)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, domain.ErrNotFound
	}
	return a.engine.GetRecipe(ctx, matches[0].ID)
}

func (a *cliApp) selectRecipe(ctx context.Context, payload string) {
	r, err := a.resolveRecipe(ctx, payload)
	if err != nil {
		a.say(speech.LineInvalidSelection(payload), speech.PriorityLow)
		return
	}
	a.selected = r
	a.showRecipeDetail(r)

	names := make([]string, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		names[i] = gpt.FormatIngredient(ing)
	}
	a.say(speech.LineRecipeSelected(r.Title, names), speech.PriorityNormal)
}

func (a *cliApp) showRecipeDetail(r *domain.Recipe) {
	a.ui.PrintStep(fmt.Sprintf("=== %s ===", r.Title))
	if r.Description != "" {
		a.ui.PrintInstruction(r.Description)
	}
	if r.Servings > 0 {
		a.ui.PrintHint(fmt.Sprintf("Servings: %d", r.Servings))
	}
	a.ui.Println("")
	if len(r.Ingredients) > 0 {
		a.ui.PrintStep("Ingredients:")
		for _, ing := range r.Ingredients {
			a.ui.PrintInstruction("  - " + gpt.FormatIngredient(ing))
		}
	}
	a.ui.PrintStep("Steps:")
	for i, st := range r.Steps {
		a.ui.PrintInstruction(fmt.Sprintf("  %d. %s (%s)", i+1, st.Label, timer.FormatClock(st.DurationSeconds)))
	}
}

// ── Cook-along ───────────────────────────────────────────────────

func (a *cliApp) startCooking(ctx context.Context) {
	if a.selected == nil {
		a.say(speech.LinePickRecipeFirst(), speech.PriorityNormal)
		return
	}
	r, err := a.engine.Start(ctx, a.selected.ID)
	if err != nil {
		a.log.Warn("start %s: %v", a.selected.ID, err)
		a.say(speech.LineRecipeRejected(), speech.PriorityNormal)
		return
	}
	a.cooking = r
	a.sessionID = a.engine.Snapshot().SessionID
	a.shown = make(map[string]bool)
	a.tipsDue = false
	a.ui.PrintChat(speech.LineCookingStart(r.Title))
}

// noStep explains why a step command did nothing.
func (a *cliApp) noStep() {
	if a.engine.Snapshot().Phase == engine.PhaseFinished {
		a.say(speech.LineAlreadyDone(), speech.PriorityLow)
		return
	}
	a.say(speech.LineNoSession(), speech.PriorityLow)
}

func (a *cliApp) advance() {
	if !a.engine.Advance() {
		a.noStep()
	}
}

func (a *cliApp) toggle() {
	if !a.engine.ToggleRun() {
		a.noStep()
		return
	}
	a.reportTimer()
}

func (a *cliApp) setRunning(running bool) {
	snap := a.engine.Snapshot()
	if snap.Phase != engine.PhaseActive {
		a.noStep()
		return
	}
	if snap.Running != running {
		a.engine.ToggleRun()
	}
	a.reportTimer()
}

func (a *cliApp) reportTimer() {
	snap := a.engine.Snapshot()
	left := timer.FormatSpoken(snap.Remaining)
	if snap.Running {
		a.say(speech.LineTimerRunning(left), speech.PriorityLow)
	} else {
		a.say(speech.LineTimerPaused(left), speech.PriorityLow)
	}
}

func (a *cliApp) status() {
	snap := a.engine.Snapshot()
	switch snap.Phase {
	case engine.PhaseInactive:
		a.say(speech.LineNoSession(), speech.PriorityLow)
		return
	case engine.PhaseFinished:
		a.ui.PrintStep(fmt.Sprintf("%s: finished", snap.RecipeTitle))
		a.ui.PrintHint(fmt.Sprintf("Started %s ago", time.Since(snap.StartedAt).Round(time.Second)))
		return
	}

	a.ui.PrintStep(fmt.Sprintf("Session: %s", snap.SessionID))
	a.ui.PrintInstruction(fmt.Sprintf("Recipe:  %s", snap.RecipeTitle))
	a.ui.PrintInstruction(fmt.Sprintf("Step:    %d/%d %s", snap.StepIndex+1, snap.StepCount, snap.Step.Label))
	a.ui.PrintInstruction(fmt.Sprintf("Timer:   %s", timer.FormatClock(snap.Remaining)))
	a.ui.PrintHint(fmt.Sprintf("Started %s ago", time.Since(snap.StartedAt).Round(time.Second)))

	a.machine.Announce(speech.LineStatus(snap.StepIndex+1, snap.StepCount, snap.RecipeTitle, snap.Step.Label,
		timer.FormatSpoken(snap.Remaining), snap.Running), speech.PriorityLow)
}

func (a *cliApp) tips() {
	snap := a.engine.Snapshot()
	if snap.TipsStatus != media.StatusResolved || len(snap.Tips) == 0 {
		a.say(speech.LineNoTips(), speech.PriorityLow)
		return
	}
	a.printTips(snap.Tips)
	a.tipsDue = false
	a.machine.SpeakTips()
}

func (a *cliApp) printTips(tips []string) {
	a.ui.PrintStep("How to enjoy it:")
	for _, t := range tips {
		a.ui.PrintInstruction("  - " + t)
	}
}

func (a *cliApp) closeSession() {
	if !a.engine.Snapshot().Active() {
		a.say(speech.LineNoSession(), speech.PriorityLow)
		return
	}
	a.engine.Close()
	a.say(speech.LineClosed(), speech.PriorityNormal)
}

func (a *cliApp) quit() {
	a.engine.Close()
	a.say(speech.LineBye(), speech.PriorityNormal)
	// Give the goodbye line a moment to start.
	time.Sleep(300 * time.Millisecond)
	a.ui.Quit()
}

// ── Machine feedback ─────────────────────────────────────────────

// handleEvent prints step changes. Narration is the machine's job.
func (a *cliApp) handleEvent(ev engine.Event) {
	if ev.Kind == engine.EventClosed {
		if ev.SessionID == a.sessionID {
			a.ui.PrintHint(fmt.Sprintf("%s closed after %d of %d steps.", ev.RecipeTitle, ev.Visited, ev.StepCount))
			a.sessionID = ""
			a.cooking = nil
		}
		return
	}
	if ev.SessionID != a.sessionID || a.cooking == nil {
		return
	}

	switch ev.Kind {
	case engine.EventStarted, engine.EventStep:
		st := a.cooking.Steps[ev.StepIndex]
		a.ui.Println("")
		a.ui.PrintStep(fmt.Sprintf("Step %d/%d: %s (%s)", ev.StepIndex+1, ev.StepCount, st.Label, timer.FormatSpoken(st.DurationSeconds)))
		a.ui.PrintInstruction(st.Instruction)
		if st.Hint != "" {
			a.ui.PrintHint("Tip: " + st.Hint)
		}
		a.ui.PrintHint("Say 'resume' to start the timer, 'next' when you're done.")
	case engine.EventFinished:
		a.ui.Println("")
		a.ui.PrintChat(speech.LineFinished(a.cooking.Title, a.cooking.Closing))
	}
}

// followMedia reports images and tips as they land.
func (a *cliApp) followMedia() {
	snap := a.engine.Snapshot()
	if !snap.Active() || snap.SessionID != a.sessionID {
		return
	}

	if e, ok := snap.Images[snap.StepIndex]; ok {
		a.reportImage(fmt.Sprintf("step-%d", snap.StepIndex), "Picture for this step", e)
	}
	if snap.FinishRequested {
		a.reportImage("finish", "Your dish", snap.Finish)
	}

	if snap.TipsStatus == media.StatusResolved && !a.shown["tips"] {
		a.shown["tips"] = true
		a.printTips(snap.Tips)
		a.tipsDue = true
	}
	// Tips wait for the completion line to finish.
	if a.tipsDue && !snap.Speaking {
		a.tipsDue = false
		a.machine.SpeakTips()
	}
}

func (a *cliApp) reportImage(key, label string, e media.Entry) {
	if e.Status == media.StatusPending || a.shown[key] {
		return
	}
	a.shown[key] = true
	switch {
	case e.Status == media.StatusUnavailable:
		a.log.Debug("%s: image unavailable", key)
	case e.Image != nil && e.Image.Path != "":
		a.ui.PrintHint(fmt.Sprintf("%s: %s", label, e.Image.Path))
	default:
		a.ui.PrintHint(label + " is ready.")
	}
}

func (a *cliApp) showHelp() {
	a.ui.PrintStep("Commands:")
	a.ui.PrintInstruction("  list / recipes     Show available recipes")
	a.ui.PrintInstruction("  1, 2, 3...         Select a recipe by number")
	a.ui.PrintInstruction("  make <name>        Select a recipe by name")
	a.ui.PrintInstruction("  start / go         Start cooking the selected recipe")
	a.ui.PrintInstruction("  next / done / Tab  Move to the next step")
	a.ui.PrintInstruction("  resume / timer     Start the step's countdown")
	a.ui.PrintInstruction("  pause / hold on    Pause the countdown")
	a.ui.PrintInstruction("  toggle / Ctrl+T    Start or pause the countdown")
	a.ui.PrintInstruction("  repeat / again     Hear the current step again")
	a.ui.PrintInstruction("  status / where     Show progress")
	a.ui.PrintInstruction("  tips               Hear how to enjoy the finished dish")
	a.ui.PrintInstruction("  hush / shh         Stop talking")
	a.ui.PrintInstruction("  close              Stop this recipe")
	a.ui.PrintInstruction("  quit / exit        Exit")
	a.ui.Println("")
	a.ui.PrintStep("Chat model (GPT_CHAT_KEY + GPT_CHAT_ENDPOINT, or OPENAI_API_KEY):")
	a.ui.PrintInstruction("  can I...? / ask ...  Ask a cooking question")
}
