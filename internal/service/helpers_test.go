package service

import (
	"context"
	"sync"
	"testing"

	"go-retail-ledger/internal/fiscal"
	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/internal/ws"
	"go-retail-ledger/pkg/database"
	"go-retail-ledger/pkg/logger"
	"go-retail-ledger/pkg/tenant"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	managerPIN      = "4321"
	managerPassword = "manager-secret"
	ownerPassword   = "owner-secret"
)

// fixture is one tenant with an owner, a manager, an operator, a product and two
// locations: a sale-source store front and a warehouse.
type fixture struct {
	db        *gorm.DB
	tenant    model.Tenant
	owner     model.User
	manager   model.User
	operator  model.User
	product   model.Product
	store     model.StockLocation
	warehouse model.StockLocation

	ledger   LedgerService
	sales    SaleService
	sessions CashSessionService
	sync     SyncService
	fiscal   *stubFiscal
	printer  *stubPrinter
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, so a query outside an open transaction would hang rather than pass
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Product{},
		&model.StockLocation{},
		&model.Inventory{},
		&model.StockMovement{},
		&model.SaleCounter{},
		&model.Sale{},
		&model.SaleItem{},
		&model.Payment{},
		&model.ProcessedSale{},
		&model.CashSession{},
		&model.CashWithdrawal{},
		&model.AuditLog{},
	))
	require.NoError(t, db.Use(tenant.Guard{}))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db}

	f.tenant = model.Tenant{Name: "Corner Store", IsActive: true, MaxOpenCashSessions: 1}
	require.NoError(t, db.Create(&f.tenant).Error)

	f.owner = f.seedUser(t, "owner@store.test", "Olga Owner", model.RoleOwner, ownerPassword, "")
	f.manager = f.seedUser(t, "manager@store.test", "Mario Manager", model.RoleManager, managerPassword, managerPIN)
	f.operator = f.seedUser(t, "operator@store.test", "Otto Operator", model.RoleOperator, "operator-secret", "")

	scope := tenant.WithTenant(context.Background(), f.tenant.ID)
	f.product = model.Product{SKU: "SKU-1", Name: "Coffee", Unit: "un", PriceCents: 2500, IsActive: true}
	require.NoError(t, db.WithContext(scope).Create(&f.product).Error)
	f.store = model.StockLocation{Name: "Store front", IsSaleSource: true}
	require.NoError(t, db.WithContext(scope).Create(&f.store).Error)
	f.warehouse = model.StockLocation{Name: "Warehouse"}
	require.NoError(t, db.WithContext(scope).Create(&f.warehouse).Error)

	f.fiscal = &stubFiscal{key: "NFCE-0001"}
	f.printer = &stubPrinter{}
	f.wire(f.fiscal, f.printer)
	return f
}

func (f *fixture) seedUser(t *testing.T, email, name string, role model.Role, password, pin string) model.User {
	t.Helper()
	u := model.User{Email: email, FullName: name, Role: role, IsActive: true}
	require.NoError(t, u.SetPassword(password))
	if pin != "" {
		require.NoError(t, u.SetPIN(pin))
	}
	require.NoError(t, f.db.WithContext(tenant.WithTenant(context.Background(), f.tenant.ID)).Create(&u).Error)
	return u
}

func (f *fixture) wire(fiscalAdapter fiscal.Adapter, printer PrintQueue) {
	db := f.db
	userRepo := repository.NewUserRepo(db)
	productRepo := repository.NewProductRepo(db)
	locationRepo := repository.NewLocationRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	sessionRepo := repository.NewCashSessionRepo(db)

	approval := NewApprovalService(userRepo)
	f.ledger = NewLedgerService(db, repository.NewInventoryRepo(db), productRepo, locationRepo)
	f.sales = NewSaleService(db, saleRepo, sessionRepo, productRepo, locationRepo, repository.NewAuditRepo(db),
		approval, f.ledger, fiscalAdapter, printer, logger.Nop())
	f.sessions = NewCashSessionService(db, repository.NewTenantRepo(db), sessionRepo, saleRepo, userRepo, approval, logger.Nop())
	f.sync = NewSyncService(db, saleRepo, f.ledger, database.TxOptions{MaxRetries: 1}, logger.Nop())
}

// as returns a context acting as u
func (f *fixture) as(u model.User) context.Context {
	return WithActor(context.Background(), Actor{
		TenantID: u.TenantID,
		UserID:   u.ID,
		Role:     u.Role,
		Name:     u.FullName,
	})
}

func (f *fixture) stock(t *testing.T, location model.StockLocation, qty int64) {
	t.Helper()
	_, err := f.ledger.Credit(f.as(f.manager), &MovementRequest{
		ProductID:  f.product.ID,
		LocationID: location.ID,
		Quantity:   decimal.NewFromInt(qty),
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, location model.StockLocation) decimal.Decimal {
	t.Helper()
	qty, err := f.ledger.Balance(f.as(f.manager), f.product.ID, location.ID)
	require.NoError(t, err)
	return qty
}

func (f *fixture) openSession(t *testing.T, u model.User, openingCents int64) *model.CashSession {
	t.Helper()
	session, err := f.sessions.Open(f.as(u), &OpenCashSessionRequest{OpeningCents: openingCents})
	require.NoError(t, err)
	return session
}

// cashSale is qty units of the fixture product at 2500 each, paid in cash
func (f *fixture) cashSale(session *model.CashSession, qty int64, paidCents int64) *CreateSaleRequest {
	return &CreateSaleRequest{
		CashSessionID: session.ID,
		LocationID:    f.store.ID,
		Items: []SaleItemRequest{{
			ProductID:      f.product.ID,
			Quantity:       decimal.NewFromInt(qty),
			UnitPriceCents: 2500,
		}},
		Payments: []PaymentRequest{{Method: model.PaymentCash, AmountCents: paidCents}},
	}
}

type stubFiscal struct {
	mu       sync.Mutex
	key      string
	emitErr  error
	emitted  []uuid.UUID
	canceled []string
}

func (s *stubFiscal) Emit(ctx context.Context, sale *model.Sale) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitErr != nil {
		return "", s.emitErr
	}
	s.emitted = append(s.emitted, sale.ID)
	return s.key, nil
}

func (s *stubFiscal) Cancel(ctx context.Context, key, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = append(s.canceled, key)
	return nil
}

type stubPrinter struct {
	mu   sync.Mutex
	jobs []ws.PrintJob
}

func (p *stubPrinter) Enqueue(ctx context.Context, job ws.PrintJob) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job.ID = uuid.NewString()
	p.jobs = append(p.jobs, job)
	return job.ID, nil
}
