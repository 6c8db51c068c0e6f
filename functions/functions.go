package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/export"
	"github.com/etnz/immotax/fx"
	"github.com/etnz/immotax/llm"
	"github.com/etnz/immotax/pdf"
	"github.com/etnz/immotax/renderer"
	"github.com/etnz/immotax/store"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// bind decodes the JSON body of a function call into req. An empty body
// is an empty object.
func bind(c *gin.Context, req any) error {
	var err error
	if c.Request.ContentLength == 0 {
		err = binding.Validator.ValidateStruct(req)
	} else {
		err = c.ShouldBindJSON(req)
	}
	if err != nil {
		return bindError(err)
	}
	return nil
}

// trades returns the trades of a calculation: the ones of the request, or the
// user's stored trades of 'asset' (all of them when empty). Trades are
// converted into 'currency' when given.
func (s *Server) trades(ctx context.Context, owner, asset string, given []immotax.Trade, currency string) ([]immotax.Trade, error) {
	trades := given
	if len(trades) == 0 {
		q := store.Query{Sort: "date"}
		if asset != "" {
			q.Filter = map[string]any{"asset": asset}
		}
		stored, err := s.ents.Trades.List(ctx, owner, q)
		if err != nil {
			return nil, err
		}
		for _, t := range stored {
			trades = append(trades, t.Trade())
		}
	} else if asset != "" {
		trades = nil
		for _, t := range given {
			if t.Asset == asset {
				trades = append(trades, t)
			}
		}
	}
	if currency == "" {
		return trades, nil
	}
	if s.rates == nil {
		for _, t := range trades {
			if cur := t.Currency(); cur != "" && cur != currency {
				return nil, fmt.Errorf("%w: trade of %s in %s and no exchange rates configured", immotax.ErrValidation, t.Date, cur)
			}
		}
		return trades, nil
	}
	converted, err := fx.ConvertTrades(ctx, s.rates, trades, currency)
	if err != nil {
		return nil, integration("exchange rates", err)
	}
	return converted, nil
}

type fifoRequest struct {
	Asset    string          `json:"asset"`
	Method   string          `json:"method"`
	Currency string          `json:"currency"`
	Trades   []immotax.Trade `json:"trades"`
	Markdown bool            `json:"markdown"`
}

type fifoResponse struct {
	Result   *immotax.FIFOResult `json:"result"`
	Markdown string              `json:"markdown,omitempty"`
}

// calculateFIFO computes the open lots and the disposals of one asset.
func (s *Server) calculateFIFO(c *gin.Context) {
	var req fifoRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if req.Asset == "" && len(req.Trades) == 0 {
		respondError(c, fmt.Errorf("%w: asset or trades are required", immotax.ErrValidation))
		return
	}
	method, err := immotax.ParseCostBasisMethod(req.Method)
	if err != nil {
		respondError(c, fmt.Errorf("%w: %w", immotax.ErrValidation, err))
		return
	}
	trades, err := s.trades(c.Request.Context(), owner(c), req.Asset, req.Trades, req.Currency)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := immotax.CalculateCostBasis(trades, method)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := fifoResponse{Result: res}
	if req.Markdown {
		resp.Markdown = renderer.RenderFIFO(res)
	}
	c.JSON(http.StatusOK, resp)
}

type gainLossRequest struct {
	Year     int             `json:"year"`
	Currency string          `json:"currency"`
	Trades   []immotax.Trade `json:"trades"`
	Save     bool            `json:"save"`
	Markdown bool            `json:"markdown"`
}

type gainLossResponse struct {
	Report   *immotax.GainLossReport     `json:"report"`
	Saved    *immotax.CapitalGainsReport `json:"saved,omitempty"`
	Markdown string                      `json:"markdown,omitempty"`
}

// gains computes the gain/loss report of the user's trades, in EUR unless
// another currency is requested.
func (s *Server) gains(ctx context.Context, owner string, given []immotax.Trade, currency string) (*immotax.GainLossReport, error) {
	if currency == "" {
		currency = "EUR"
	}
	trades, err := s.trades(ctx, owner, "", given, currency)
	if err != nil {
		return nil, err
	}
	return immotax.CalculateFIFOGainLoss(trades, immotax.PrivateSales())
}

// calculateFIFOGainLoss computes the realized gains of all assets by tax year.
// With save, the summary of the year is stored as a CapitalGainsReport.
func (s *Server) calculateFIFOGainLoss(c *gin.Context) {
	var req gainLossRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if req.Save && req.Year == 0 {
		respondError(c, fmt.Errorf("%w: a year is required to save the report", immotax.ErrValidation))
		return
	}
	ctx := c.Request.Context()
	report, err := s.gains(ctx, owner(c), req.Trades, req.Currency)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gainLossResponse{Report: report}
	if req.Markdown {
		resp.Markdown = renderer.GainsMarkdown(report, req.Year)
	}
	if req.Save {
		saved := &immotax.CapitalGainsReport{
			TaxYear:  req.Year,
			Method:   report.Method,
			Currency: report.Currency,
			Summary:  immotax.YearSummary{Year: req.Year},
		}
		if y := report.Year(req.Year); y != nil {
			saved.Summary = *y
		}
		seen := make(map[string]bool)
		for _, sale := range report.SalesIn(req.Year) {
			if !seen[sale.Asset] {
				seen[sale.Asset] = true
				saved.Assets = append(saved.Assets, sale.Asset)
			}
		}
		if err := s.ents.GainsReports.Create(ctx, owner(c), saved); err != nil {
			respondError(c, err)
			return
		}
		resp.Saved = saved
	}
	c.JSON(http.StatusOK, resp)
}

type duplicatesRequest struct {
	Kind   immotax.Kind    `json:"kind"`
	Entity json.RawMessage `json:"entity"`
}

type duplicatesResponse struct {
	Duplicates []immotax.Entity `json:"duplicates"`
	Count      int              `json:"count"`
}

// checkDuplicates returns the stored entities that are probable duplicates of
// the one in the request.
func (s *Server) checkDuplicates(c *gin.Context) {
	var req duplicatesRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	k, err := immotax.ParseKind(string(req.Kind))
	if err != nil {
		respondError(c, err)
		return
	}
	if !immotax.HasDuplicateRules(k) {
		respondError(c, fmt.Errorf("%w: no duplicate detection for %s", immotax.ErrValidation, k))
		return
	}
	candidate, err := immotax.NewEntity(k)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := json.Unmarshal(req.Entity, candidate); err != nil {
		respondError(c, bindError(err))
		return
	}
	existing, err := s.list(c.Request.Context(), owner(c), k, store.Query{})
	if err != nil {
		respondError(c, err)
		return
	}
	dups := immotax.FindDuplicates(candidate, existing)
	if dups == nil {
		dups = []immotax.Entity{}
	}
	c.JSON(http.StatusOK, duplicatesResponse{Duplicates: dups, Count: len(dups)})
}

type validateRequest struct {
	ID string `json:"id" binding:"required"`
	// Review asks for a plausibility review by the model, when one is configured.
	Review *bool `json:"review"`
}

type validateResponse struct {
	Valid      bool                      `json:"valid"`
	Findings   []immotax.Finding         `json:"findings"`
	Summary    string                    `json:"summary,omitempty"`
	Reviewed   bool                      `json:"reviewed"`
	Submission *immotax.ElsterSubmission `json:"submission"`
}

// validateElsterSubmission checks a submission with the local rules and, when
// a model is configured, reviews its plausibility. The findings and the
// resulting status are written back to the submission.
func (s *Server) validateElsterSubmission(c *gin.Context) {
	var req validateRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	sub, err := s.ents.Submissions.Get(ctx, owner(c), req.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	findings := immotax.ValidateElster(*sub, s.today())
	resp := validateResponse{}
	if req.Review == nil || *req.Review {
		review, err := llm.ReviewElster(ctx, s.llm, *sub, findings)
		switch {
		case errors.Is(err, llm.ErrDisabled):
			logger(c).Debug("plausibility review disabled")
		case err != nil:
			respondError(c, integration("llm", err))
			return
		default:
			findings = append(findings, review.Findings...)
			sub.Review = review.Raw
			resp.Summary = review.Summary
			resp.Reviewed = true
		}
	}

	sub.Findings = findings
	resp.Valid = !immotax.HasErrors(findings)
	if sub.Status != immotax.SubmissionSubmitted {
		sub.Status = immotax.SubmissionInvalid
		if resp.Valid {
			sub.Status = immotax.SubmissionValidated
		}
	}
	if err := s.ents.Submissions.Update(ctx, owner(c), sub); err != nil {
		respondError(c, err)
		return
	}
	logger(c).Info("submission validated", zap.String("submission", sub.ID), zap.String("status", sub.Status), zap.Int("findings", len(findings)))

	resp.Findings = findings
	if resp.Findings == nil {
		resp.Findings = []immotax.Finding{}
	}
	resp.Submission = sub
	c.JSON(http.StatusOK, resp)
}

type exportRequest struct {
	Year   int    `json:"year" binding:"required"`
	Format string `json:"format"`
}

type documentResponse struct {
	Document *immotax.Document `json:"document"`
	URL      string            `json:"url,omitempty"`
	Result   any               `json:"result,omitempty"`
}

// exportTaxData exports the data of a tax year and stores it as a Document.
func (s *Server) exportTaxData(c *gin.Context) {
	var req exportRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	data, err := export.Collect(ctx, s.ents, owner(c), req.Year, s.rates)
	if err != nil {
		if errors.Is(err, export.ErrRates) {
			err = integration("exchange rates", err)
		}
		respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, data, format); err != nil {
		respondError(c, err)
		return
	}
	doc := &immotax.Document{
		Name:        export.FileName(req.Year, format),
		ContentType: format.ContentType(),
		Type:        immotax.DocumentExport,
		TaxYear:     req.Year,
	}
	if err := s.saveDocument(ctx, owner(c), doc, buf.Bytes()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentResponse{Document: doc, URL: s.files.URL(doc.StorageKey)})
}

type anlageVRequest struct {
	PropertyID string `json:"propertyId" binding:"required"`
	Year       int    `json:"year" binding:"required"`
}

// generateAnlageV computes the Anlage V of a property and stores it as a PDF.
func (s *Server) generateAnlageV(c *gin.Context) {
	var req anlageVRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	property, err := s.ents.Properties.Get(ctx, owner(c), req.PropertyID)
	if err != nil {
		respondError(c, err)
		return
	}
	leases, err := s.ents.Leases.Where(ctx, owner(c), "propertyId", property.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	payments, err := s.ents.Payments.List(ctx, owner(c), store.Query{})
	if err != nil {
		respondError(c, err)
		return
	}
	invoices, err := s.ents.Invoices.Where(ctx, owner(c), "propertyId", property.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := immotax.AnlageV(*property, store.Values(leases), store.Values(payments), store.Values(invoices), req.Year)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := pdf.AnlageV(&buf, res, s.now()); err != nil {
		respondError(c, err)
		return
	}
	doc := &immotax.Document{
		Name:        fmt.Sprintf("anlage-v-%d-%s.pdf", req.Year, slug(property.Name)),
		ContentType: "application/pdf",
		Type:        immotax.DocumentAnlageV,
		TaxYear:     req.Year,
		PropertyID:  property.ID,
	}
	if err := s.saveDocument(ctx, owner(c), doc, buf.Bytes()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentResponse{Document: doc, URL: s.files.URL(doc.StorageKey), Result: res})
}

type gainsReportRequest struct {
	Year     int    `json:"year" binding:"required"`
	Currency string `json:"currency"`
}

// generateGainsReport stores the capital gains report of a year as a PDF.
// The saved CapitalGainsReport of the year, if any, is linked to it.
func (s *Server) generateGainsReport(c *gin.Context) {
	var req gainsReportRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	report, err := s.gains(ctx, owner(c), nil, req.Currency)
	if err != nil {
		respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := pdf.GainsReport(&buf, report, req.Year, s.now()); err != nil {
		respondError(c, err)
		return
	}
	doc := &immotax.Document{
		Name:        fmt.Sprintf("capital-gains-%d.pdf", req.Year),
		ContentType: "application/pdf",
		Type:        immotax.DocumentGainsReport,
		TaxYear:     req.Year,
	}
	if err := s.saveDocument(ctx, owner(c), doc, buf.Bytes()); err != nil {
		respondError(c, err)
		return
	}

	saved, err := s.ents.GainsReports.Where(ctx, owner(c), "taxYear", req.Year)
	if err != nil {
		respondError(c, err)
		return
	}
	for _, r := range saved {
		r.DocumentID = doc.ID
		if err := s.ents.GainsReports.Update(ctx, owner(c), r); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, documentResponse{Document: doc, URL: s.files.URL(doc.StorageKey), Result: report.Year(req.Year)})
}

type receiptRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
}

// generateRentReceipt stores the receipt of a rent payment as a PDF.
func (s *Server) generateRentReceipt(c *gin.Context) {
	var req receiptRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	payment, err := s.ents.Payments.Get(ctx, owner(c), req.PaymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	lease, err := s.ents.Leases.Get(ctx, owner(c), payment.LeaseID)
	if err != nil {
		respondError(c, err)
		return
	}
	tenant, err := s.ents.Tenants.Get(ctx, owner(c), lease.TenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	property, err := s.ents.Properties.Get(ctx, owner(c), lease.PropertyID)
	if err != nil {
		respondError(c, err)
		return
	}
	var buf bytes.Buffer
	receipt := pdf.Receipt{Landlord: currentUser(c).Name, Tenant: *tenant, Property: *property, Lease: *lease, Payment: *payment}
	if err := pdf.RentReceipt(&buf, receipt, s.now()); err != nil {
		respondError(c, err)
		return
	}
	doc := &immotax.Document{
		Name:        fmt.Sprintf("receipt-%s-%s.pdf", payment.Date, slug(tenant.FullName())),
		ContentType: "application/pdf",
		Type:        immotax.DocumentReceipt,
		TaxYear:     payment.Date.Year(),
		PropertyID:  property.ID,
	}
	if err := s.saveDocument(ctx, owner(c), doc, buf.Bytes()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentResponse{Document: doc, URL: s.files.URL(doc.StorageKey)})
}

type leaseRequest struct {
	LeaseID  string       `json:"leaseId" binding:"required"`
	AsOf     immotax.Date `json:"asOf"`
	Markdown bool         `json:"markdown"`
}

// asOf returns the day of the request, today by default.
func (s *Server) asOf(d immotax.Date) immotax.Date {
	if d.IsZero() {
		return s.today()
	}
	return d
}

type rentStatusResponse struct {
	Status   immotax.RentStatusResult `json:"status"`
	Markdown string                   `json:"markdown,omitempty"`
}

// rentStatus computes the arrears of a lease.
func (s *Server) rentStatus(c *gin.Context) {
	var req leaseRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	lease, err := s.ents.Leases.Get(ctx, owner(c), req.LeaseID)
	if err != nil {
		respondError(c, err)
		return
	}
	payments, err := s.ents.Payments.Where(ctx, owner(c), "leaseId", lease.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := rentStatusResponse{Status: immotax.RentStatus(*lease, store.Values(payments), s.asOf(req.AsOf))}
	if req.Markdown {
		resp.Markdown = renderer.RentStatusMarkdown(resp.Status)
	}
	c.JSON(http.StatusOK, resp)
}

// sendRentReminder emails the tenant of a lease in arrears, even if a
// reminder was already sent this month.
func (s *Server) sendRentReminder(c *gin.Context) {
	var req leaseRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if s.mail == nil {
		respondError(c, integration("mail", errors.New("no mail sender configured")))
		return
	}
	res, err := s.reminders.SendRent(c.Request.Context(), owner(c), req.LeaseID, s.asOf(req.AsOf), true)
	if err != nil {
		if !errors.Is(err, immotax.ErrValidation) && !errors.Is(err, store.ErrNotFound) {
			err = integration("mail", err)
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type webhookRequest struct {
	ID string `json:"id" binding:"required"`
}

// testWebhook delivers a ping event to a webhook.
func (s *Server) testWebhook(c *gin.Context) {
	var req webhookRequest
	if err := bind(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	h, err := s.ents.Webhooks.Get(ctx, owner(c), req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.hooks.Ping(ctx, h); err != nil {
		respondError(c, integration("webhook", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": true, "url": h.URL})
}

// slug returns a lower case file name fragment of letters, digits and dashes.
func slug(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r), r == '-', r == '_', r == '.':
			return '-'
		}
		return -1
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}
