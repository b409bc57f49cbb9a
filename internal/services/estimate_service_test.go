package services

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"printshop/internal/captcha"
	"printshop/internal/models"
	"printshop/internal/repository"
	"printshop/internal/storage"

	"gorm.io/gorm"
)

// ---------------------------------------------------------------------------
// mock repositories
// ---------------------------------------------------------------------------

type mockEstimateRepo struct {
	createWithItemsFunc func(e *models.Estimate, items []models.EstimateItem) error
	getByIDFunc         func(id uint) (*models.Estimate, error)
	getByNumberFunc     func(number string) (*models.Estimate, error)
	updateStatusFunc    func(id uint, status string) error
	replaceItemsFunc    func(e *models.Estimate, items []models.EstimateItem) error
}

func (m *mockEstimateRepo) CreateWithItems(e *models.Estimate, items []models.EstimateItem) error {
	if m.createWithItemsFunc != nil {
		return m.createWithItemsFunc(e, items)
	}
	e.ID = 1
	e.EstimateNumber = "EST20260901-0001"
	return nil
}

func (m *mockEstimateRepo) GetByID(id uint) (*models.Estimate, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEstimateRepo) GetByNumber(number string) (*models.Estimate, error) {
	if m.getByNumberFunc != nil {
		return m.getByNumberFunc(number)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEstimateRepo) List(offset, limit int) ([]models.Estimate, int64, error) {
	return nil, 0, nil
}

func (m *mockEstimateRepo) UpdateStatus(id uint, status string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(id, status)
	}
	return nil
}

func (m *mockEstimateRepo) ReplaceItems(e *models.Estimate, items []models.EstimateItem) error {
	if m.replaceItemsFunc != nil {
		return m.replaceItemsFunc(e, items)
	}
	return nil
}

func (m *mockEstimateRepo) Delete(id uint) error { return nil }

type mockMaterialRepo struct {
	materials map[uint]*models.Material
}

func (m *mockMaterialRepo) Create(material *models.Material) error { return nil }
func (m *mockMaterialRepo) GetByID(id uint) (*models.Material, error) {
	if material, ok := m.materials[id]; ok {
		return material, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockMaterialRepo) GetActive() ([]models.Material, error)  { return nil, nil }
func (m *mockMaterialRepo) GetAll() ([]models.Material, error)     { return nil, nil }
func (m *mockMaterialRepo) Update(material *models.Material) error { return nil }
func (m *mockMaterialRepo) Delete(id uint) error                   { return nil }

type mockFinishingRepo struct {
	options map[uint]*models.FinishingOption
}

func (m *mockFinishingRepo) Create(o *models.FinishingOption) error { return nil }
func (m *mockFinishingRepo) GetByID(id uint) (*models.FinishingOption, error) {
	if option, ok := m.options[id]; ok {
		return option, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockFinishingRepo) GetActive() ([]models.FinishingOption, error) { return nil, nil }
func (m *mockFinishingRepo) GetAll() ([]models.FinishingOption, error)    { return nil, nil }
func (m *mockFinishingRepo) Update(o *models.FinishingOption) error       { return nil }
func (m *mockFinishingRepo) Delete(id uint) error                         { return nil }

type mockSettingsRepo struct {
	settings map[string]*models.SiteSetting
}

func (m *mockSettingsRepo) Get(key string) (*models.SiteSetting, error) {
	if setting, ok := m.settings[key]; ok {
		return setting, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockSettingsRepo) GetAll() ([]models.SiteSetting, error) { return nil, nil }
func (m *mockSettingsRepo) Upsert(s *models.SiteSetting) error    { return nil }

type fakeStore struct {
	saveFunc func(fileName string, data []byte) (string, error)
}

func (f *fakeStore) Save(fileName string, data []byte) (string, error) {
	if f.saveFunc != nil {
		return f.saveFunc(fileName, data)
	}
	if err := storage.ValidateFile(fileName, int64(len(data))); err != nil {
		return "", err
	}
	return "/uploads/" + fileName, nil
}

type fakeNotifier struct {
	sendFunc func(to, subject, body string) error
	sent     []string
}

func (f *fakeNotifier) Send(to, subject, body string) error {
	f.sent = append(f.sent, subject)
	if f.sendFunc != nil {
		return f.sendFunc(to, subject, body)
	}
	return nil
}

type fakeVerifier struct {
	err error
}

func (f *fakeVerifier) Verify(token, remoteIP string) error { return f.err }

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func testCatalog() (*mockMaterialRepo, *mockFinishingRepo, *mockSettingsRepo) {
	materials := &mockMaterialRepo{materials: map[uint]*models.Material{
		1: {ID: 1, Name: "PLA", PricePerKg: 20, IsActive: true},
	}}
	finishing := &mockFinishingRepo{options: map[uint]*models.FinishingOption{
		2: {ID: 2, Name: "Sanding", Fee: 15, IsActive: true},
	}}
	settings := &mockSettingsRepo{settings: map[string]*models.SiteSetting{
		models.SettingTaxRate:  {SettingKey: models.SettingTaxRate, NumericValue: 8},
		models.SettingCurrency: {SettingKey: models.SettingCurrency, Value: "USD"},
	}}
	return materials, finishing, settings
}

func newTestService(repo repository.EstimateRepository, notifier Notifier, verifier captcha.Verifier, bypass bool) EstimateService {
	materials, finishing, settings := testCatalog()
	return NewEstimateService(repo, materials, finishing, settings, &fakeStore{}, notifier, verifier, "sales@printshop.local", bypass)
}

func validManualRequest() *SubmissionRequest {
	return &SubmissionRequest{
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		Title:         "Bracket batch",
		Source:        SourceManual,
		TaxRate:       10,
		Items: []SubmissionItem{
			{Description: "CNC bracket", Quantity: 3, Unit: "pcs", UnitPrice: 19.99},
		},
	}
}

func validCalculatorRequest() *SubmissionRequest {
	return &SubmissionRequest{
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		Source:        SourceCalculator,
		CalculatorData: &CalculatorData{
			MaterialID:    1,
			Width:         100,
			Height:        50,
			Length:        20,
			Unit:          "mm",
			InfillPercent: 20,
			Quality:       "standard",
			Quantity:      1,
		},
	}
}

func centsEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

// ---------------------------------------------------------------------------
// validation
// ---------------------------------------------------------------------------

func TestSubmit_ValidationErrorsPerField(t *testing.T) {
	created := false
	repo := &mockEstimateRepo{
		createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			created = true
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	_, err := svc.Submit(&SubmissionRequest{
		CustomerName:  "A",
		CustomerEmail: "not-an-email",
		Title:         "ab",
		Source:        SourceManual,
	})

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	for _, field := range []string{"customer_name", "customer_email", "title", "items"} {
		if _, ok := verrs[field]; !ok {
			t.Errorf("expected a validation error for %s, got %v", field, verrs)
		}
	}
	if created {
		t.Fatal("validation failure must not reach persistence")
	}
}

func TestSubmit_MultibyteNameMeasuredInRunes(t *testing.T) {
	created := false
	repo := &mockEstimateRepo{
		createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			created = true
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	// 60 runes but 120 bytes; within the 100-character bound.
	req := validManualRequest()
	req.CustomerName = strings.Repeat("ü", 60)

	if _, err := svc.Submit(req); err != nil {
		t.Fatalf("60-rune name should pass validation, got %v", err)
	}
	if !created {
		t.Fatal("valid submission should reach persistence")
	}

	req = validManualRequest()
	req.CustomerName = strings.Repeat("ü", 101)
	_, err := svc.Submit(req)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors for a 101-rune name, got %v", err)
	}
	if _, ok := verrs["customer_name"]; !ok {
		t.Fatalf("expected customer_name error, got %v", verrs)
	}
}

func TestSubmit_NegativeItemQuantityRejected(t *testing.T) {
	svc := newTestService(&mockEstimateRepo{}, nil, nil, false)

	req := validManualRequest()
	req.Items[0].Quantity = -1

	_, err := svc.Submit(req)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if _, ok := verrs["items.0.quantity"]; !ok {
		t.Fatalf("expected items.0.quantity error, got %v", verrs)
	}
}

// ---------------------------------------------------------------------------
// calculator path
// ---------------------------------------------------------------------------

func TestSubmit_CalculatorItemsReconcileWithTotals(t *testing.T) {
	var saved *models.Estimate
	var savedItems []models.EstimateItem
	repo := &mockEstimateRepo{
		createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			e.ID = 7
			e.EstimateNumber = "EST20260901-0001"
			saved = e
			savedItems = items
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	estimate, err := svc.Submit(validCalculatorRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.EstimateNumber != "EST20260901-0001" {
		t.Fatalf("estimate number not assigned: %q", estimate.EstimateNumber)
	}
	if len(savedItems) != 2 {
		t.Fatalf("expected material and print-time items, got %d", len(savedItems))
	}

	// 100 cm³ at 20% infill: material 0.496 -> 0.50/unit, 5.2h -> 52.00/unit.
	centsEqual(t, "material line", savedItems[0].LineTotal, 0.50)
	centsEqual(t, "print-time line", savedItems[1].LineTotal, 52.00)

	var sum float64
	for _, item := range savedItems {
		sum += item.LineTotal
		centsEqual(t, "line total = qty * unit price", item.LineTotal, item.Quantity*item.UnitPrice)
	}
	centsEqual(t, "subtotal reconciles with items", saved.Subtotal, sum)
	centsEqual(t, "subtotal", saved.Subtotal, 52.50)
	centsEqual(t, "tax", saved.TaxAmount, 4.20)
	centsEqual(t, "total formula", saved.TotalAmount, 56.70)

	if !strings.Contains(saved.CalculatorData, `"material_id":1`) {
		t.Fatalf("calculator snapshot not stored: %q", saved.CalculatorData)
	}
}

func TestSubmit_CalculatorQuantityDiscount(t *testing.T) {
	var saved *models.Estimate
	repo := &mockEstimateRepo{
		createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			saved = e
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	// Zero infill leaves only the finishing fee: $15/unit, quantity 10.
	req := validCalculatorRequest()
	req.CalculatorData.InfillPercent = 0
	req.CalculatorData.FinishingID = 2
	req.CalculatorData.Quantity = 10

	if _, err := svc.Submit(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	centsEqual(t, "subtotal", saved.Subtotal, 150)
	centsEqual(t, "discount", saved.DiscountAmount, 15)
	centsEqual(t, "tax", saved.TaxAmount, 10.80)
	centsEqual(t, "total", saved.TotalAmount, 145.80)
}

func TestSubmit_CalculatorDeterministic(t *testing.T) {
	totals := make([]float64, 2)
	for i := range totals {
		var saved *models.Estimate
		repo := &mockEstimateRepo{
			createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
				saved = e
				return nil
			},
		}
		svc := newTestService(repo, nil, nil, false)
		if _, err := svc.Submit(validCalculatorRequest()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		totals[i] = saved.TotalAmount
	}
	if totals[0] != totals[1] {
		t.Fatalf("identical submissions priced differently: %v vs %v", totals[0], totals[1])
	}
}

func TestSubmit_UnknownMaterialRejected(t *testing.T) {
	svc := newTestService(&mockEstimateRepo{}, nil, nil, false)

	req := validCalculatorRequest()
	req.CalculatorData.MaterialID = 99

	if _, err := svc.Submit(req); !errors.Is(err, ErrMaterialNotFound) {
		t.Fatalf("expected ErrMaterialNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// manual path
// ---------------------------------------------------------------------------

func TestSubmit_ManualTotalFormula(t *testing.T) {
	var saved *models.Estimate
	repo := &mockEstimateRepo{
		createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			saved = e
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	req := validManualRequest()
	req.DiscountAmount = 5

	if _, err := svc.Submit(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 3 x 19.99 = 59.97, minus 5 discount = 54.97, 10% tax.
	centsEqual(t, "subtotal", saved.Subtotal, 59.97)
	centsEqual(t, "discount", saved.DiscountAmount, 5)
	centsEqual(t, "tax", saved.TaxAmount, 5.50)
	centsEqual(t, "total", saved.TotalAmount, 60.47)
}

// ---------------------------------------------------------------------------
// file handling
// ---------------------------------------------------------------------------

func TestSubmit_OversizedFileRejected(t *testing.T) {
	created := false
	repo := &mockEstimateRepo{
		createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			created = true
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	req := validManualRequest()
	req.FileName = "model.stl"
	req.FileData = base64.StdEncoding.EncodeToString(make([]byte, 6<<20))

	_, err := svc.Submit(req)
	if !errors.Is(err, storage.ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if created {
		t.Fatal("oversized upload must not create an estimate")
	}
}

func TestSubmit_DisallowedFileTypeRejected(t *testing.T) {
	created := false
	repo := &mockEstimateRepo{
		createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			created = true
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	req := validManualRequest()
	req.FileName = "model.exe"
	req.FileData = base64.StdEncoding.EncodeToString([]byte("MZ"))

	_, err := svc.Submit(req)
	if !errors.Is(err, storage.ErrFileTypeInvalid) {
		t.Fatalf("expected ErrFileTypeInvalid, got %v", err)
	}
	if created {
		t.Fatal("disallowed upload must not create an estimate")
	}
}

func TestSubmit_StoresFileReference(t *testing.T) {
	var saved *models.Estimate
	repo := &mockEstimateRepo{
		createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			saved = e
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	req := validManualRequest()
	req.FileName = "bracket.stl"
	req.FileData = "data:model/stl;base64," + base64.StdEncoding.EncodeToString([]byte("solid bracket"))

	if _, err := svc.Submit(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.FileName != "bracket.stl" || saved.FilePath == "" {
		t.Fatalf("file reference not stored: name=%q path=%q", saved.FileName, saved.FilePath)
	}
}

// ---------------------------------------------------------------------------
// anti-automation and notification boundaries
// ---------------------------------------------------------------------------

func TestSubmit_CaptchaFailureBlocksPersistence(t *testing.T) {
	created := false
	repo := &mockEstimateRepo{
		createWithItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			created = true
			return nil
		},
	}
	svc := newTestService(repo, nil, &fakeVerifier{err: captcha.ErrVerificationFailed}, false)

	_, err := svc.Submit(validManualRequest())
	if !errors.Is(err, captcha.ErrVerificationFailed) {
		t.Fatalf("expected captcha failure, got %v", err)
	}
	if created {
		t.Fatal("captcha failure must not reach persistence")
	}
}

func TestSubmit_CalculatorFlowBypassesCaptcha(t *testing.T) {
	svc := newTestService(&mockEstimateRepo{}, nil, &fakeVerifier{err: captcha.ErrVerificationFailed}, true)

	if _, err := svc.Submit(validCalculatorRequest()); err != nil {
		t.Fatalf("first-party calculator flow should bypass captcha, got %v", err)
	}
}

func TestSubmit_NotificationFailureIsSwallowed(t *testing.T) {
	notifier := &fakeNotifier{
		sendFunc: func(to, subject, body string) error {
			return errors.New("smtp relay down")
		},
	}
	svc := newTestService(&mockEstimateRepo{}, notifier, nil, false)

	estimate, err := svc.Submit(validManualRequest())
	if err != nil {
		t.Fatalf("notification failure must not fail the submission: %v", err)
	}
	if estimate == nil || estimate.EstimateNumber == "" {
		t.Fatal("estimate should be committed despite notification failure")
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification attempt, got %d", len(notifier.sent))
	}
}

// ---------------------------------------------------------------------------
// status machine
// ---------------------------------------------------------------------------

func TestUpdateStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{"pending", "sent", true},
		{"sent", "viewed", true},
		{"viewed", "accepted", true},
		{"viewed", "rejected", true},
		{"pending", "accepted", true}, // skipping forward is allowed
		{"draft", "pending", true},
		{"viewed", "sent", false},
		{"accepted", "rejected", false},
		{"pending", "pending", false},
		{"sent", "draft", false},
		{"pending", "bogus", false},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", c.from, c.to), func(t *testing.T) {
			repo := &mockEstimateRepo{
				getByIDFunc: func(id uint) (*models.Estimate, error) {
					return &models.Estimate{ID: id, Status: c.from}, nil
				},
			}
			svc := newTestService(repo, nil, nil, false)

			_, err := svc.UpdateStatus(1, c.to)
			if c.ok && err != nil {
				t.Fatalf("expected %s -> %s to succeed, got %v", c.from, c.to, err)
			}
			if !c.ok && !errors.Is(err, ErrInvalidStatusTransition) {
				t.Fatalf("expected %s -> %s to be rejected, got %v", c.from, c.to, err)
			}
		})
	}
}

func TestViewEstimate_MarksSentAsViewed(t *testing.T) {
	updated := ""
	repo := &mockEstimateRepo{
		getByNumberFunc: func(number string) (*models.Estimate, error) {
			return &models.Estimate{ID: 1, EstimateNumber: number, Status: "sent"}, nil
		},
		updateStatusFunc: func(id uint, status string) error {
			updated = status
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	estimate, err := svc.ViewEstimateByNumber("EST20260901-0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.Status != "viewed" || updated != "viewed" {
		t.Fatalf("sent estimate should flip to viewed, got %q (persisted %q)", estimate.Status, updated)
	}
}

func TestViewEstimate_PendingStaysPending(t *testing.T) {
	repo := &mockEstimateRepo{
		getByNumberFunc: func(number string) (*models.Estimate, error) {
			return &models.Estimate{ID: 1, EstimateNumber: number, Status: "pending"}, nil
		},
		updateStatusFunc: func(id uint, status string) error {
			t.Fatal("pending estimate must not be updated on view")
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	if _, err := svc.ViewEstimateByNumber("EST20260901-0001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// item replacement
// ---------------------------------------------------------------------------

func TestUpdateItems_ReplacesSetAndRecomputesTotals(t *testing.T) {
	stored := &models.Estimate{
		ID: 4, EstimateNumber: "EST20260901-0004", Status: "pending",
		Subtotal: 100, TaxRate: 8, TaxAmount: 8, TotalAmount: 108,
	}
	var replaced []models.EstimateItem
	repo := &mockEstimateRepo{
		getByIDFunc: func(id uint) (*models.Estimate, error) { return stored, nil },
		replaceItemsFunc: func(e *models.Estimate, items []models.EstimateItem) error {
			replaced = items
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, false)

	_, err := svc.UpdateItems(4, []SubmissionItem{
		{Description: "Resin print", Quantity: 2, Unit: "pcs", UnitPrice: 30},
		{Description: "Assembly", Quantity: 1, Unit: "h", UnitPrice: 25},
	}, 8, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(replaced) != 2 {
		t.Fatalf("expected the full new item set, got %d items", len(replaced))
	}
	centsEqual(t, "recomputed subtotal", stored.Subtotal, 85)
	centsEqual(t, "recomputed tax", stored.TaxAmount, 6.80)
	centsEqual(t, "recomputed total", stored.TotalAmount, 91.80)
}

// ---------------------------------------------------------------------------
// concurrent submissions
// ---------------------------------------------------------------------------

// memoryEstimateRepo mimics the database contract CreateWithItems relies
// on: number generation and insert are atomic, and a duplicate number can
// never be committed.
type memoryEstimateRepo struct {
	mockEstimateRepo
	mu      sync.Mutex
	numbers map[string]bool
	nextSeq int
}

func (m *memoryEstimateRepo) CreateWithItems(e *models.Estimate, items []models.EstimateItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	number := fmt.Sprintf("EST%s-%04d", time.Now().Format("20060102"), m.nextSeq)
	if m.numbers[number] {
		return gorm.ErrDuplicatedKey
	}
	m.numbers[number] = true
	e.EstimateNumber = number
	e.ID = uint(m.nextSeq)
	return nil
}

func TestSubmit_ConcurrentSubmissionsGetDistinctNumbers(t *testing.T) {
	repo := &memoryEstimateRepo{numbers: make(map[string]bool)}
	svc := newTestService(repo, nil, nil, false)

	const n = 20
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			estimate, err := svc.Submit(validManualRequest())
			if err != nil {
				t.Errorf("concurrent submission failed: %v", err)
				return
			}
			results <- estimate.EstimateNumber
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for number := range results {
		if seen[number] {
			t.Fatalf("duplicate estimate number issued: %s", number)
		}
		seen[number] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct numbers, got %d", n, len(seen))
	}
}
