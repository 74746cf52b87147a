package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openfiscal/fisc/internal/model"
	"github.com/openfiscal/fisc/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

// Approver implements the interactive approval gate for section review.
type Approver struct {
	startTime      time.Time
	writer         io.Writer
	reader         *NonBlockingReader
	progressBar    *progressbar.ProgressBar
	totalSections  int
	processedCount int
}

// NewApprover creates a new CLI approver with the given reader and writer.
func NewApprover(reader io.Reader, writer io.Writer) *Approver {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Approver{
		reader:    NewNonBlockingReader(reader),
		writer:    writer,
		startTime: time.Now(),
	}
}

// SetTotalSections sets the number of sections expected this run.
func (a *Approver) SetTotalSections(total int) {
	a.totalSections = total
	a.initProgressBar()
}

// ReviewEntityChange presents a proposed registry change and collects the
// reviewer's decision.
func (a *Approver) ReviewEntityChange(ctx context.Context, proposal service.EntityProposal) (service.EntityDecision, error) {
	select {
	case <-ctx.Done():
		return service.EntityDecision{}, ctx.Err()
	default:
	}

	a.updateProgress()

	content := a.formatEntityProposal(proposal)
	if _, err := fmt.Fprintln(a.writer, RenderBox("Entity Review", content)); err != nil {
		return service.EntityDecision{}, fmt.Errorf("failed to write entity box: %w", err)
	}

	switch proposal.Action {
	case service.ActionResolveAmbiguous:
		return a.resolveAmbiguous(ctx, proposal)
	case service.ActionAddAlias:
		return a.reviewWithEdit(ctx, "Record alias and link section", func(text string) *model.CanonicalEntity {
			return &model.CanonicalEntity{Name: text}
		})
	case service.ActionCreateEntity:
		return a.reviewWithEdit(ctx, "Create entity", func(text string) *model.CanonicalEntity {
			edited := *proposal.Proposed
			edited.Name = text
			edited.CanonicalName = text
			return &edited
		})
	default:
		return a.reviewSimple(ctx)
	}
}

// ReviewBudgetChanges presents the program, fund, and allocation changes for
// one section and collects an approve/reject/abort verdict.
func (a *Approver) ReviewBudgetChanges(ctx context.Context, proposal service.BudgetProposal) (service.Decision, error) {
	select {
	case <-ctx.Done():
		return service.DecisionReject, ctx.Err()
	default:
	}

	content := a.formatBudgetProposal(proposal)
	if _, err := fmt.Fprintln(a.writer, RenderBox("Budget Review", content)); err != nil {
		return service.DecisionReject, fmt.Errorf("failed to write budget box: %w", err)
	}

	a.printOptions(
		"  [A] Approve and commit",
		"  [R] Reject this section",
		"  [X] Abort remaining sections in this document",
	)

	choice, err := a.promptChoice(ctx, "Choice [A/R/X]", []string{"a", "r", "x"})
	if err != nil {
		return service.DecisionReject, err
	}

	switch choice {
	case "a":
		return service.DecisionApprove, nil
	case "x":
		return service.DecisionAbort, nil
	default:
		return service.DecisionReject, nil
	}
}

// ShowSummary displays the run summary to the reviewer.
func (a *Approver) ShowSummary(summary service.RunSummary) {
	if a.progressBar != nil {
		if err := a.progressBar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
		if _, err := fmt.Fprintln(a.writer); err != nil {
			slog.Warn("Failed to write newline", "error", err)
		}
	}

	content := fmt.Sprintf("%s Reconciliation Complete!\n\n", BankIcon) +
		fmt.Sprintf("%s Statistics:\n", ChartIcon) +
		fmt.Sprintf("  • Documents processed: %d (skipped: %d)\n", summary.DocumentsProcessed, summary.DocumentsSkipped) +
		fmt.Sprintf("  • Sections committed: %d (rejected: %d)\n", summary.SectionsProcessed, summary.SectionsRejected) +
		fmt.Sprintf("  • Entities matched: %d, created: %d, aliases added: %d\n",
			summary.EntitiesMatched, summary.EntitiesCreated, summary.AliasesAdded) +
		fmt.Sprintf("  • Programs: %d new, %d updated\n", summary.ProgramsFound, summary.ProgramsUpdated) +
		fmt.Sprintf("  • Funds: %d new, %d renamed\n", summary.FundsNew, summary.FundsUpdated) +
		fmt.Sprintf("  • Allocations: %d inserted, %d overwritten\n",
			summary.AllocationsInserted, summary.AllocationsOverwritten) +
		fmt.Sprintf("  • Time taken: %s\n", summary.Duration.Round(time.Second))

	if _, err := fmt.Fprintln(a.writer, RenderBox("Run Summary", content)); err != nil {
		slog.Warn("Failed to write summary box", "error", err)
	}
}

func (a *Approver) reviewSimple(ctx context.Context) (service.EntityDecision, error) {
	a.printOptions(
		"  [A] Accept",
		"  [R] Reject this section",
		"  [X] Abort remaining sections in this document",
	)

	choice, err := a.promptChoice(ctx, "Choice [A/R/X]", []string{"a", "r", "x"})
	if err != nil {
		return service.EntityDecision{}, err
	}
	if choice == "a" {
		return service.EntityDecision{Decision: service.DecisionApprove}, nil
	}
	return service.EntityDecision{Decision: decisionFor(choice)}, nil
}

// reviewWithEdit handles the accept/edit/reject/abort shape shared by alias
// and create proposals; edit re-prompts for the corrected text and build
// turns it into the edited entity.
func (a *Approver) reviewWithEdit(ctx context.Context, acceptLabel string, build func(text string) *model.CanonicalEntity) (service.EntityDecision, error) {
	a.printOptions(
		"  [A] "+acceptLabel,
		"  [E] Edit the proposed name",
		"  [R] Reject this section",
		"  [X] Abort remaining sections in this document",
	)

	choice, err := a.promptChoice(ctx, "Choice [A/E/R/X]", []string{"a", "e", "r", "x"})
	if err != nil {
		return service.EntityDecision{}, err
	}

	switch choice {
	case "a":
		return service.EntityDecision{Decision: service.DecisionApprove}, nil
	case "e":
		text, err := a.promptText(ctx, "Enter corrected name")
		if err != nil {
			return service.EntityDecision{}, err
		}
		return service.EntityDecision{
			Decision: service.DecisionApprove,
			Edited:   build(text),
		}, nil
	default:
		return service.EntityDecision{Decision: decisionFor(choice)}, nil
	}
}

// resolveAmbiguous lists the tied candidates and requires the reviewer to
// pick one by number, reject, or abort. There is no default choice.
func (a *Approver) resolveAmbiguous(ctx context.Context, proposal service.EntityProposal) (service.EntityDecision, error) {
	candidates := proposal.Match.Candidates
	for i, c := range candidates {
		line := fmt.Sprintf("  [%d] %s (score %.2f", i+1, c.Entity.Name, c.Score)
		if c.Entity.OrganizationCode != "" {
			line += ", org " + c.Entity.OrganizationCode
		}
		line += ")"
		if _, err := fmt.Fprintln(a.writer, line); err != nil {
			return service.EntityDecision{}, fmt.Errorf("failed to write candidate: %w", err)
		}
	}
	a.printOptions(
		"  [R] Reject this section",
		"  [X] Abort remaining sections in this document",
	)

	valid := []string{"r", "x"}
	for i := range candidates {
		valid = append(valid, strconv.Itoa(i+1))
	}

	choice, err := a.promptChoice(ctx, fmt.Sprintf("Choice [1-%d/R/X]", len(candidates)), valid)
	if err != nil {
		return service.EntityDecision{}, err
	}
	if n, convErr := strconv.Atoi(choice); convErr == nil {
		return service.EntityDecision{
			Decision: service.DecisionApprove,
			Chosen:   candidates[n-1].Entity,
		}, nil
	}
	return service.EntityDecision{Decision: decisionFor(choice)}, nil
}

func (a *Approver) formatEntityProposal(proposal service.EntityProposal) string {
	section := proposal.Section
	match := proposal.Match

	header := TitleStyle.Render(fmt.Sprintf("Section: %s", section.Header()))

	details := fmt.Sprintf("%s Source:\n", InfoIcon) +
		fmt.Sprintf("  Document: %s\n", section.SourceDocument) +
		fmt.Sprintf("  Lines: %d-%d\n", section.StartLine+1, section.EndLine)

	var outcome string
	switch proposal.Action {
	case service.ActionUseMatch:
		outcome = fmt.Sprintf("\n%s Matched: %s (%d%% confidence)",
			SuccessIcon, SuccessStyle.Render(match.Entity.Name), match.Confidence)
	case service.ActionAddAlias:
		outcome = fmt.Sprintf("\n%s Matched: %s (%d%% confidence)",
			SuccessIcon, SuccessStyle.Render(match.Entity.Name), match.Confidence) +
			fmt.Sprintf("\n  New alias: %s", WarningStyle.Render(match.ProposedAlias))
	case service.ActionResolveAmbiguous:
		outcome = fmt.Sprintf("\n%s %d entities tied above the similarity threshold",
			WarningIcon, len(match.Candidates))
	case service.ActionCreateEntity:
		outcome = fmt.Sprintf("\n%s No match; proposing NEW entity: %s",
			WarningIcon, WarningStyle.Render(proposal.Proposed.Name))
		if proposal.Proposed.OrganizationCode != "" {
			outcome += fmt.Sprintf("\n  Organization code: %s", proposal.Proposed.OrganizationCode)
		}
		if len(proposal.Proposed.Aliases) > 0 {
			outcome += fmt.Sprintf("\n  Abbreviation: %s", strings.Join(proposal.Proposed.Aliases, ", "))
		}
	}

	return header + "\n\n" + details + outcome
}

func (a *Approver) formatBudgetProposal(proposal service.BudgetProposal) string {
	header := TitleStyle.Render(fmt.Sprintf("Budget Changes: %s", proposal.Entity.Name))

	totals := make(map[int]decimal.Decimal)
	var years []int
	for i := range proposal.Allocations {
		alloc := &proposal.Allocations[i]
		if _, ok := totals[alloc.FiscalYear]; !ok {
			years = append(years, alloc.FiscalYear)
		}
		totals[alloc.FiscalYear] = totals[alloc.FiscalYear].Add(alloc.Amount)
	}

	summary := fmt.Sprintf("\n%s Summary:\n", ChartIcon) +
		fmt.Sprintf("  Programs: %d\n", len(proposal.Programs)) +
		fmt.Sprintf("  Funds: %d\n", len(proposal.Funds)) +
		fmt.Sprintf("  Allocations: %d\n", len(proposal.Allocations))
	for _, year := range years {
		summary += fmt.Sprintf("  FY %d total: $%s thousand\n", year, totals[year].StringFixed(0))
	}

	var overwrites string
	if len(proposal.Overwrites) > 0 {
		overwrites = fmt.Sprintf("\n%s Overwrites (%d amounts already on record):\n",
			WarningIcon, len(proposal.Overwrites))
		shown := proposal.Overwrites
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, o := range shown {
			overwrites += fmt.Sprintf("  • %s FY %d fund %s: $%s → $%s (was from %s)\n",
				o.ProjectCode, o.FiscalYear, o.FundCode,
				o.OldAmount.StringFixed(0), o.NewAmount.StringFixed(0), o.OldSource)
		}
		if len(proposal.Overwrites) > 5 {
			overwrites += fmt.Sprintf("  • ... and %d more\n", len(proposal.Overwrites)-5)
		}
	}

	return header + summary + overwrites
}

func (a *Approver) printOptions(options ...string) {
	if _, err := fmt.Fprintln(a.writer, FormatPrompt("Options:")); err != nil {
		slog.Warn("Failed to write options prompt", "error", err)
	}
	for _, opt := range options {
		if _, err := fmt.Fprintln(a.writer, opt); err != nil {
			slog.Warn("Failed to write option", "error", err)
		}
	}
	if _, err := fmt.Fprintln(a.writer); err != nil {
		slog.Warn("Failed to write newline", "error", err)
	}
}

func (a *Approver) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprintf(a.writer, "%s: ", FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := a.reader.ReadLine(ctx)
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("input terminated")
			}
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(a.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

func (a *Approver) promptText(ctx context.Context, prompt string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprint(a.writer, FormatPrompt(prompt+": ")); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := a.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if input == "" {
			if _, err := fmt.Fprintln(a.writer, FormatError("Name cannot be empty. Please try again.")); err != nil {
				slog.Warn("Failed to write empty name error", "error", err)
			}
			continue
		}
		return input, nil
	}
}

func (a *Approver) initProgressBar() {
	a.progressBar = progressbar.NewOptions(a.totalSections,
		progressbar.OptionSetWriter(a.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing sections...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(a.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func (a *Approver) updateProgress() {
	a.processedCount++
	if a.progressBar != nil {
		if err := a.progressBar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

func decisionFor(choice string) service.Decision {
	if choice == "x" {
		return service.DecisionAbort
	}
	return service.DecisionReject
}

// Ensure Approver implements the service.Approver interface.
var _ service.Approver = (*Approver)(nil)
