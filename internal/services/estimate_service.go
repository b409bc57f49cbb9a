package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"printshop/internal/captcha"
	"printshop/internal/models"
	"printshop/internal/pricing"
	"printshop/internal/repository"
	"printshop/internal/storage"

	"gorm.io/gorm"
)

const (
	SourceCalculator = "calculator"
	SourceManual     = "manual"
)

var (
	ErrMaterialNotFound        = errors.New("material not found")
	ErrFinishingNotFound       = errors.New("finishing option not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// SubmissionItem is one line of a manual submission or item update.
type SubmissionItem struct {
	ItemType    string  `json:"item_type"`
	ReferenceID uint    `json:"reference_id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
}

// CalculatorData is the structured print-parameter snapshot attached to
// calculator submissions. It is stored verbatim on the estimate so the
// quoted totals can be reproduced later.
type CalculatorData struct {
	MaterialID    uint    `json:"material_id"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Length        float64 `json:"length"`
	Unit          string  `json:"unit"`
	InfillPercent float64 `json:"infill"`
	Quality       string  `json:"quality"`
	FinishingID   uint    `json:"finishing_id"`
	Quantity      int     `json:"quantity"`
}

// SubmissionRequest is the wire payload of a public or admin estimate
// submission.
type SubmissionRequest struct {
	CustomerName        string           `json:"customer_name"`
	CustomerEmail       string           `json:"customer_email"`
	CustomerPhone       string           `json:"customer_phone"`
	CustomerCompany     string           `json:"customer_company"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	Items               []SubmissionItem `json:"items"`
	TaxRate             float64          `json:"tax_rate"`
	DiscountAmount      float64          `json:"discount_amount"`
	Currency            string           `json:"currency"`
	CalculatorData      *CalculatorData  `json:"calculator_data"`
	FileData            string           `json:"file_data"`
	FileName            string           `json:"file_name"`
	Source              string           `json:"source"`
	AntiAutomationToken string           `json:"anti_automation_token"`
	CreatedBy           uint             `json:"-"`
	RemoteIP            string           `json:"-"`
}

type EstimateService interface {
	Quote(data *CalculatorData) (*pricing.Breakdown, error)
	Submit(req *SubmissionRequest) (*models.Estimate, error)
	GetEstimateByID(id uint) (*models.Estimate, error)
	ViewEstimateByNumber(number string) (*models.Estimate, error)
	ListEstimates(page, perPage int) ([]models.Estimate, int64, error)
	UpdateItems(id uint, items []SubmissionItem, taxRate, discountAmount float64) (*models.Estimate, error)
	UpdateStatus(id uint, status string) (*models.Estimate, error)
	DeleteEstimate(id uint) error
}

// FileStore persists uploaded model files and returns their public path.
type FileStore interface {
	Save(fileName string, data []byte) (string, error)
}

// Notifier delivers best-effort notifications. Failures are logged and
// swallowed by the caller, never surfaced.
type Notifier interface {
	Send(to, subject, body string) error
}

type estimateService struct {
	estimateRepo  repository.EstimateRepository
	materialRepo  repository.MaterialRepository
	finishingRepo repository.FinishingRepository
	settingsRepo  repository.SettingsRepository
	store         FileStore
	notifier      Notifier
	verifier      captcha.Verifier
	notifyEmail   string
	bypassCaptcha bool // skip verification for the first-party calculator flow
}

func NewEstimateService(
	estimateRepo repository.EstimateRepository,
	materialRepo repository.MaterialRepository,
	finishingRepo repository.FinishingRepository,
	settingsRepo repository.SettingsRepository,
	store FileStore,
	notifier Notifier,
	verifier captcha.Verifier,
	notifyEmail string,
	bypassCaptcha bool,
) EstimateService {
	return &estimateService{
		estimateRepo:  estimateRepo,
		materialRepo:  materialRepo,
		finishingRepo: finishingRepo,
		settingsRepo:  settingsRepo,
		store:         store,
		notifier:      notifier,
		verifier:      verifier,
		notifyEmail:   notifyEmail,
		bypassCaptcha: bypassCaptcha,
	}
}

// Quote runs the pricing calculator server-side for the live preview. It
// uses the same pure function the submission path uses, so a preview and
// the stored estimate can never disagree.
func (s *estimateService) Quote(data *CalculatorData) (*pricing.Breakdown, error) {
	if data == nil || data.MaterialID == 0 {
		return &pricing.Breakdown{}, nil
	}
	params, err := s.calculatorParams(data)
	if err != nil {
		return nil, err
	}
	breakdown := pricing.Calculate(*params)
	return &breakdown, nil
}

// Submit validates, prices, persists and announces an estimate submission.
// The client-side calculator result is never trusted: calculator
// submissions are re-priced from the snapshot and the catalog before
// anything is stored.
func (s *estimateService) Submit(req *SubmissionRequest) (*models.Estimate, error) {
	source := req.Source
	if source == "" {
		source = SourceManual
		if req.CalculatorData != nil {
			source = SourceCalculator
		}
	}

	if err := s.checkAntiAutomation(req, source); err != nil {
		return nil, err
	}

	estimate, items, err := s.assemble(req, source)
	if err != nil {
		return nil, err
	}

	// File constraints are enforced before any bytes reach disk; the file
	// write itself happens before the insert transaction, so a failed
	// commit can leave an orphaned file behind (accepted tradeoff).
	if req.FileData != "" {
		path, err := s.storeUpload(req)
		if err != nil {
			return nil, err
		}
		estimate.FileName = req.FileName
		estimate.FilePath = path
	}

	if err := s.estimateRepo.CreateWithItems(estimate, items); err != nil {
		if estimate.FilePath != "" {
			log.Printf("Estimate insert failed after file write, orphaned upload at %s", estimate.FilePath)
		}
		return nil, err
	}

	s.notifySubmission(estimate)
	return estimate, nil
}

func (s *estimateService) checkAntiAutomation(req *SubmissionRequest, source string) error {
	if s.verifier == nil {
		return nil
	}
	if req.CreatedBy != 0 {
		// Authenticated staff submissions skip the public-form check.
		return nil
	}
	if source == SourceCalculator && s.bypassCaptcha {
		return nil
	}
	return s.verifier.Verify(req.AntiAutomationToken, req.RemoteIP)
}

// assemble turns a submission into an estimate header plus line items.
// Validation failures come back as a ValidationErrors map.
func (s *estimateService) assemble(req *SubmissionRequest, source string) (*models.Estimate, []models.EstimateItem, error) {
	errs := ValidationErrors{}
	validateContact(req, errs)

	currency := req.Currency
	if currency == "" {
		currency = s.currency()
	}

	estimate := &models.Estimate{
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		CustomerCompany: strings.TrimSpace(req.CustomerCompany),
		Description:     strings.TrimSpace(req.Description),
		Currency:        currency,
		Status:          string(models.EstimatePending),
		Source:          source,
		CreatedBy:       req.CreatedBy,
	}

	var items []models.EstimateItem

	switch source {
	case SourceCalculator:
		if req.CalculatorData == nil {
			errs["calculator_data"] = "calculator data is required for calculator submissions"
			return nil, nil, errs
		}
		validateCalculatorData(req.CalculatorData, errs)
		if len(errs) > 0 {
			return nil, nil, errs
		}

		params, err := s.calculatorParams(req.CalculatorData)
		if err != nil {
			return nil, nil, err
		}
		breakdown := pricing.Calculate(*params)
		if breakdown.Total <= 0 {
			errs["calculator_data"] = "print parameters do not produce a positive cost"
			return nil, nil, errs
		}

		items = s.breakdownItems(req.CalculatorData, &breakdown)
		fillTotals(estimate, items, pricing.DiscountRate(req.CalculatorData.Quantity), params.TaxRatePercent)

		snapshot, err := json.Marshal(req.CalculatorData)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to serialize calculator snapshot: %w", err)
		}
		estimate.CalculatorData = string(snapshot)

		estimate.Title = strings.TrimSpace(req.Title)
		if estimate.Title == "" {
			estimate.Title = s.calculatorTitle(req.CalculatorData)
		}
		validateTitle(estimate.Title, errs)

	case SourceManual:
		validateTitle(req.Title, errs)
		validateItems(req.Items, errs)
		if len(errs) > 0 {
			return nil, nil, errs
		}

		estimate.Title = strings.TrimSpace(req.Title)
		items = manualItems(req.Items)
		fillManualTotals(estimate, items, req.DiscountAmount, req.TaxRate)

	default:
		errs["source"] = "source must be calculator or manual"
	}

	if len(errs) > 0 {
		return nil, nil, errs
	}
	return estimate, items, nil
}

func validateCalculatorData(data *CalculatorData, errs ValidationErrors) {
	if data.Width <= 0 || data.Height <= 0 || data.Length <= 0 {
		errs["calculator_data.dimensions"] = "all dimensions must be positive"
	}
	if data.Unit != "" && data.Unit != pricing.UnitMM && data.Unit != pricing.UnitCM {
		errs["calculator_data.unit"] = "unit must be mm or cm"
	}
	if data.InfillPercent < 0 || data.InfillPercent > 100 {
		errs["calculator_data.infill"] = "infill must be between 0 and 100"
	}
	if !pricing.ValidQuality(data.Quality) {
		errs["calculator_data.quality"] = "quality must be draft, standard or high"
	}
	if data.Quantity < 1 {
		errs["calculator_data.quantity"] = "quantity must be at least 1"
	}
}

// calculatorParams resolves catalog references and the site tax rate into
// pricing parameters.
func (s *estimateService) calculatorParams(data *CalculatorData) (*pricing.Params, error) {
	material, err := s.materialRepo.GetByID(data.MaterialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaterialNotFound
		}
		return nil, err
	}

	var finishingFee float64
	if data.FinishingID != 0 {
		finishing, err := s.finishingRepo.GetByID(data.FinishingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrFinishingNotFound
			}
			return nil, err
		}
		finishingFee = finishing.Fee
	}

	return &pricing.Params{
		Width:              data.Width,
		Height:             data.Height,
		Length:             data.Length,
		Unit:               data.Unit,
		MaterialPricePerKg: material.PricePerKg,
		InfillPercent:      data.InfillPercent,
		Quality:            data.Quality,
		FinishingFee:       finishingFee,
		Quantity:           data.Quantity,
		TaxRatePercent:     s.taxRate(),
	}, nil
}

// breakdownItems builds one line item per breakdown component so the
// stored items always reconcile with the displayed total.
func (s *estimateService) breakdownItems(data *CalculatorData, b *pricing.Breakdown) []models.EstimateItem {
	qty := float64(data.Quantity)

	materialName := "Material"
	if material, err := s.materialRepo.GetByID(data.MaterialID); err == nil {
		materialName = material.Name
	}

	items := []models.EstimateItem{
		{
			ItemType:    string(models.ItemMaterial),
			ReferenceID: data.MaterialID,
			Description: fmt.Sprintf("%s (%s quality, %.0f%% infill)", materialName, data.Quality, data.InfillPercent),
			Quantity:    qty,
			Unit:        "pcs",
			UnitPrice:   pricing.Round2(b.MaterialCost),
		},
		{
			ItemType:    string(models.ItemCustom),
			Description: fmt.Sprintf("Print time (%.1f h per unit)", b.PrintTimeHours),
			Quantity:    qty,
			Unit:        "pcs",
			UnitPrice:   pricing.Round2(b.TimeCost),
		},
	}

	if data.FinishingID != 0 && b.FinishingCost > 0 {
		finishingName := "Finishing"
		if finishing, err := s.finishingRepo.GetByID(data.FinishingID); err == nil {
			finishingName = finishing.Name
		}
		items = append(items, models.EstimateItem{
			ItemType:    string(models.ItemService),
			ReferenceID: data.FinishingID,
			Description: finishingName,
			Quantity:    qty,
			Unit:        "pcs",
			UnitPrice:   pricing.Round2(b.FinishingCost),
		})
	}

	for i := range items {
		items[i].LineTotal = pricing.Round2(items[i].Quantity * items[i].UnitPrice)
	}
	return items
}

func manualItems(in []SubmissionItem) []models.EstimateItem {
	items := make([]models.EstimateItem, 0, len(in))
	for _, item := range in {
		itemType := item.ItemType
		if itemType == "" {
			itemType = string(models.ItemCustom)
		}
		items = append(items, models.EstimateItem{
			ItemType:    itemType,
			ReferenceID: item.ReferenceID,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			UnitPrice:   item.UnitPrice,
			LineTotal:   pricing.Round2(item.Quantity * item.UnitPrice),
		})
	}
	return items
}

// fillTotals derives the stored monetary fields from the line items. The
// subtotal is the sum of the stored line totals, so the two reconcile by
// construction.
func fillTotals(estimate *models.Estimate, items []models.EstimateItem, discountRate, taxRate float64) {
	var subtotal float64
	for _, item := range items {
		subtotal += item.LineTotal
	}
	subtotal = pricing.Round2(subtotal)
	discount := pricing.Round2(subtotal * discountRate)
	applyTotals(estimate, subtotal, discount, taxRate)
}

func fillManualTotals(estimate *models.Estimate, items []models.EstimateItem, discountAmount, taxRate float64) {
	var subtotal float64
	for _, item := range items {
		subtotal += item.LineTotal
	}
	subtotal = pricing.Round2(subtotal)

	discount := pricing.Round2(discountAmount)
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	applyTotals(estimate, subtotal, discount, taxRate)
}

func applyTotals(estimate *models.Estimate, subtotal, discount, taxRate float64) {
	taxable := subtotal - discount
	estimate.Subtotal = subtotal
	estimate.DiscountAmount = discount
	estimate.TaxRate = taxRate
	estimate.TaxAmount = pricing.Round2(taxable * taxRate / 100)
	estimate.TotalAmount = pricing.Round2(taxable * (1 + taxRate/100))
}

func (s *estimateService) calculatorTitle(data *CalculatorData) string {
	name := "3D print"
	if material, err := s.materialRepo.GetByID(data.MaterialID); err == nil {
		name = material.Name + " print"
	}
	return fmt.Sprintf("%s, %d pcs", name, data.Quantity)
}

// storeUpload decodes the inline file and writes it through the store.
func (s *estimateService) storeUpload(req *SubmissionRequest) (string, error) {
	if req.FileName == "" {
		return "", ValidationErrors{"file_name": "file name is required when a file is attached"}
	}

	payload := req.FileData
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", ValidationErrors{"file_data": "file data is not valid base64"}
	}
	if int64(len(data)) > storage.MaxFileSize {
		return "", storage.ErrFileTooLarge
	}

	return s.store.Save(req.FileName, data)
}

// notifySubmission is a best-effort post-commit side effect: a failed
// notification is logged and swallowed, never rolled into the submission
// result.
func (s *estimateService) notifySubmission(estimate *models.Estimate) {
	if s.notifier == nil || s.notifyEmail == "" {
		return
	}
	subject := fmt.Sprintf("New estimate %s", estimate.EstimateNumber)
	body := fmt.Sprintf(
		"Estimate %s submitted by %s <%s>.\nTitle: %s\nTotal: %.2f %s\n",
		estimate.EstimateNumber,
		estimate.CustomerName,
		estimate.CustomerEmail,
		estimate.Title,
		estimate.TotalAmount,
		estimate.Currency,
	)
	if err := s.notifier.Send(s.notifyEmail, subject, body); err != nil {
		log.Printf("Failed to send estimate notification for %s: %v", estimate.EstimateNumber, err)
	}
}

func (s *estimateService) GetEstimateByID(id uint) (*models.Estimate, error) {
	return s.estimateRepo.GetByID(id)
}

// ViewEstimateByNumber returns the customer-facing record and marks a sent
// estimate as viewed on first access.
func (s *estimateService) ViewEstimateByNumber(number string) (*models.Estimate, error) {
	estimate, err := s.estimateRepo.GetByNumber(number)
	if err != nil {
		return nil, err
	}
	if estimate.Status == string(models.EstimateSent) {
		if err := s.estimateRepo.UpdateStatus(estimate.ID, string(models.EstimateViewed)); err != nil {
			return nil, err
		}
		estimate.Status = string(models.EstimateViewed)
	}
	return estimate, nil
}

func (s *estimateService) ListEstimates(page, perPage int) ([]models.Estimate, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.estimateRepo.List((page-1)*perPage, perPage)
}

// UpdateItems replaces the full line-item set and recomputes the stored
// totals. Partial patching of items is not supported.
func (s *estimateService) UpdateItems(id uint, in []SubmissionItem, taxRate, discountAmount float64) (*models.Estimate, error) {
	estimate, err := s.estimateRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	errs := ValidationErrors{}
	validateItems(in, errs)
	if len(errs) > 0 {
		return nil, errs
	}

	items := manualItems(in)
	fillManualTotals(estimate, items, discountAmount, taxRate)

	if err := s.estimateRepo.ReplaceItems(estimate, items); err != nil {
		return nil, err
	}
	return s.estimateRepo.GetByID(id)
}

// statusRank orders the estimate lifecycle. Transitions must move
// forward; skipping ahead is allowed, moving backward is not.
var statusRank = map[string]int{
	string(models.EstimateDraft):    0,
	string(models.EstimatePending):  1,
	string(models.EstimateSent):     2,
	string(models.EstimateViewed):   3,
	string(models.EstimateAccepted): 4,
	string(models.EstimateRejected): 4,
}

func (s *estimateService) UpdateStatus(id uint, status string) (*models.Estimate, error) {
	toRank, ok := statusRank[status]
	if !ok {
		return nil, ErrInvalidStatusTransition
	}

	estimate, err := s.estimateRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	fromRank, ok := statusRank[estimate.Status]
	if !ok || toRank <= fromRank {
		return nil, ErrInvalidStatusTransition
	}

	if err := s.estimateRepo.UpdateStatus(estimate.ID, status); err != nil {
		return nil, err
	}
	estimate.Status = status
	return estimate, nil
}

func (s *estimateService) DeleteEstimate(id uint) error {
	return s.estimateRepo.Delete(id)
}

func (s *estimateService) taxRate() float64 {
	setting, err := s.settingsRepo.Get(models.SettingTaxRate)
	if err != nil {
		return 0
	}
	return setting.NumericValue
}

func (s *estimateService) currency() string {
	setting, err := s.settingsRepo.Get(models.SettingCurrency)
	if err != nil || setting.Value == "" {
		return "USD"
	}
	return setting.Value
}
