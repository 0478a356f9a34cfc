package commands

import (
	"bufio"
	"context"
	"ecourts-backend/internal/chrono"
	"ecourts-backend/internal/telemetry"
	"ecourts-backend/lib/browser"
	"ecourts-backend/lib/scrapers/ecourts"
	"ecourts-backend/lib/serviceutil"
	"ecourts-backend/services/casestatus"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const cliPrincipal = "cli"

var (
	flowHeadless   *bool
	flowRemoteURL  *string
	flowBaseURL    *string
	flowCaptchaOut *string
	flowPdfOut     *string
)

func init() {
	flowHeadless = flowCmd.Flags().Bool("headless", true, "Run the browser without a window.")
	flowRemoteURL = flowCmd.Flags().String("remote-url", "", "Devtools websocket url of an already running browser.")
	flowBaseURL = flowCmd.Flags().String("base-url", ecourts.DefaultBaseURL, "The portal to walk.")
	flowCaptchaOut = flowCmd.Flags().String("captcha-out", "captcha.png", "Where the captcha image is written.")
	flowPdfOut = flowCmd.Flags().String("pdf-out", "", "Where the latest order is written, empty skips downloading it.")
	rootCmd.AddCommand(flowCmd)
}

type prompter struct {
	in *bufio.Scanner
}

func (p prompter) line(question string) string {
	fmt.Printf("%s: ", question)
	if !p.in.Scan() {
		serviceutil.Fatal("read input", errors.New("stdin closed"))
	}
	return strings.TrimSpace(p.in.Text())
}

// choose lists options and reads either an option's number or its text.
func (p prompter) choose(title string, options []string) string {
	t := newTable()
	t.AppendHeader(table.Row{"#", title})
	for i, option := range options {
		t.AppendRow(table.Row{i + 1, option})
	}
	t.Render()

	answer := p.line(fmt.Sprintf("%s (number or name)", title))
	n, err := strconv.Atoi(answer)
	if err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	return answer
}

func writeCaptcha(image []byte) {
	err := os.WriteFile(*flowCaptchaOut, image, 0644)
	if err != nil {
		serviceutil.Fatal("write captcha", err)
	}
	fmt.Printf("captcha written to %s\n", *flowCaptchaOut)
}

var flowCmd = &cobra.Command{
	Use:   "flow [--headless=false] [--pdf-out order.pdf]",
	Short: "Walks one case lookup through the portal interactively.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		tel := telemetry.SlogAPI{}

		opts := casestatus.DefaultOptions()
		opts.Lifecycle.BaseURL = *flowBaseURL
		opts.IdleTimeout = 0

		launcher := browser.NewChromedpLauncher(browser.ChromedpOptions{
			Headless:  *flowHeadless,
			RemoteURL: *flowRemoteURL,
		}, tel)
		service, err := casestatus.NewService(launcher, opts, chrono.NewStandardTime(), tel)
		if err != nil {
			serviceutil.Fatal("init casestatus", err)
		}
		defer service.Shutdown()

		err = runFlow(ctx, service, prompter{in: bufio.NewScanner(os.Stdin)})
		if err != nil {
			slog.Error("flow failed", "err", err)
		}
	},
}

func runFlow(ctx context.Context, service *casestatus.Service, p prompter) error {
	states, err := service.ListStates(ctx, cliPrincipal)
	if err != nil {
		return err
	}
	districts, err := service.ListDistricts(ctx, cliPrincipal, p.choose("State", states))
	if err != nil {
		return err
	}
	courts, err := service.ListCourts(ctx, cliPrincipal, p.choose("District", districts))
	if err != nil {
		return err
	}
	caseTypes, err := service.ListCaseTypes(ctx, cliPrincipal, p.choose("Court", courts))
	if err != nil {
		return err
	}
	writeCaptcha(caseTypes.Captcha)

	input := casestatus.SubmitInput{
		CaseType:   p.choose("Case type", caseTypes.CaseTypes),
		CaseNumber: p.line("Case number"),
		CaseYear:   p.line("Case year"),
	}
	var result casestatus.SubmitResult
	for {
		input.CaptchaText = p.line("Captcha text")
		result, err = service.SubmitCase(ctx, cliPrincipal, input)
		caseErr, ok := casestatus.AsError(err)
		if !ok || !errors.Is(caseErr, casestatus.ErrValidationFailed) || len(caseErr.Captcha) == 0 {
			break
		}
		fmt.Println("the portal rejected the captcha, try again")
		writeCaptcha(caseErr.Captcha)
	}
	if err != nil {
		return err
	}

	printRecord(result.Record)

	if result.PdfURL == "" || *flowPdfOut == "" {
		return nil
	}
	pdf, err := service.FetchPdf(ctx, cliPrincipal)
	if err != nil {
		return err
	}
	err = os.WriteFile(*flowPdfOut, pdf, 0644)
	if err != nil {
		return err
	}
	fmt.Printf("latest order written to %s\n", *flowPdfOut)
	return nil
}

func printFields(title string, fields ecourts.Fields) {
	t := newTable()
	t.SetTitle(title)
	for _, field := range fields {
		t.AppendRow(table.Row{field.Name, field.Value})
	}
	t.Render()
}

func printRecord(record ecourts.CaseRecord) {
	fmt.Println(record.CourtName)
	printFields("Case details", record.CaseInfo)
	printFields("Case status", record.CaseStatus)

	hearing := record.NextHearing.Raw
	if record.NextHearing.IsTomorrow {
		hearing += " (tomorrow)"
	}
	fmt.Printf("next hearing: %s\n", hearing)

	parties := newTable()
	parties.AppendHeader(table.Row{"Petitioners", "Respondents"})
	for i := 0; i < max(len(record.Petitioners), len(record.Respondents)); i++ {
		row := table.Row{"", ""}
		if i < len(record.Petitioners) {
			row[0] = record.Petitioners[i]
		}
		if i < len(record.Respondents) {
			row[1] = record.Respondents[i]
		}
		parties.AppendRow(row)
	}
	parties.Render()

	if len(record.Acts) > 0 {
		acts := newTable()
		acts.AppendHeader(table.Row{"Act", "Section"})
		for _, act := range record.Acts {
			acts.AppendRow(table.Row{act.Act, act.Section})
		}
		acts.Render()
	}

	if len(record.Orders) > 0 {
		orders := newTable()
		orders.AppendHeader(table.Row{"Order", "Date", "Details"})
		for _, order := range record.Orders {
			orders.AppendRow(table.Row{order.Number, order.Date, order.Details})
		}
		orders.Render()
	}
}
