package tenant

import (
	"context"
	"reflect"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const tenantField = "TenantID"

// Parent describes how a child entity reaches its owning tenant
type Parent struct {
	ForeignKey string
	Table      string
}

// ParentScoped is implemented by models owned through a parent row, e.g. payments through sales
type ParentScoped interface {
	TenantParent() Parent
}

// Guard is a gorm plugin that confines every statement on a tenant-owned model to the tenant
// bound on the statement context.
type Guard struct{}

func (Guard) Name() string {
	return "tenant:guard"
}

func (g Guard) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("tenant:create", g.beforeCreate); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("tenant:query", g.beforeRead); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenant:update", g.beforeUpdate); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("tenant:delete", g.beforeRead); err != nil {
		return err
	}
	return cb.Row().Before("gorm:row").Register("tenant:row", g.beforeRead)
}

func (g Guard) beforeRead(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	g.restrict(db)
}

func (g Guard) beforeUpdate(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	if !g.restrict(db) {
		return
	}
	if field := db.Statement.Schema.LookUpField(tenantField); field != nil {
		tenantID, _ := FromContext(db.Statement.Context)
		fill(db, field, tenantID)
	}
}

func (g Guard) beforeCreate(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	sch := db.Statement.Schema
	field := sch.LookUpField(tenantField)
	if field == nil {
		if parent, ok := parentOf(sch); ok {
			tenantID, err := FromContext(db.Statement.Context)
			if err != nil {
				db.AddError(err)
				return
			}
			verifyParents(db, parent, tenantID)
		}
		return
	}
	tenantID, err := FromContext(db.Statement.Context)
	if err != nil {
		db.AddError(err)
		return
	}
	fill(db, field, tenantID)
}

// restrict adds the tenant predicate. It reports false when the statement was failed.
func (g Guard) restrict(db *gorm.DB) bool {
	sch := db.Statement.Schema
	field := sch.LookUpField(tenantField)
	parent, indirect := parentOf(sch)
	if field == nil && !indirect {
		return true
	}

	tenantID, err := FromContext(db.Statement.Context)
	if err != nil {
		db.AddError(err)
		return false
	}

	var expr clause.Expression
	if field != nil {
		expr = clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: field.DBName},
			Value:  tenantID,
		}
	} else {
		expr = clause.Expr{
			SQL: "? IN (SELECT id FROM ? WHERE tenant_id = ?)",
			Vars: []interface{}{
				clause.Column{Table: clause.CurrentTable, Name: parent.ForeignKey},
				clause.Table{Name: parent.Table},
				tenantID,
			},
		}
	}
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{expr}})
	return true
}

func parentOf(sch *schema.Schema) (Parent, bool) {
	if sch.ModelType == nil {
		return Parent{}, false
	}
	if scoped, ok := reflect.New(sch.ModelType).Interface().(ParentScoped); ok {
		return scoped.TenantParent(), true
	}
	return Parent{}, false
}

// verifyParents fails the create unless every referenced parent row belongs to tenantID.
// The lookup runs on the statement's connection so an open transaction sees its own parents.
func verifyParents(db *gorm.DB, parent Parent, tenantID uuid.UUID) {
	field := db.Statement.Schema.LookUpField(parent.ForeignKey)
	rv := db.Statement.ReflectValue
	if field == nil || !rv.IsValid() {
		return
	}
	ctx := db.Statement.Context

	seen := map[interface{}]bool{}
	var ids []interface{}
	collect := func(row reflect.Value) {
		if row.Kind() != reflect.Struct {
			return
		}
		value, zero := field.ValueOf(ctx, row)
		if zero || seen[value] {
			return
		}
		seen[value] = true
		ids = append(ids, value)
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			collect(reflect.Indirect(rv.Index(i)))
		}
	case reflect.Struct:
		collect(rv)
	}
	if len(ids) == 0 {
		return
	}

	var owned int64
	err := db.Session(&gorm.Session{NewDB: true}).
		Table(parent.Table).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Count(&owned).Error
	if err != nil {
		db.AddError(err)
		return
	}
	if owned != int64(len(ids)) {
		db.AddError(ErrTenantMismatch)
	}
}

func fill(db *gorm.DB, field *schema.Field, tenantID uuid.UUID) {
	rv := db.Statement.ReflectValue
	if !rv.IsValid() {
		return
	}
	ctx := db.Statement.Context
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := fillOne(ctx, field, reflect.Indirect(rv.Index(i)), tenantID); err != nil {
				db.AddError(err)
				return
			}
		}
	case reflect.Struct:
		if err := fillOne(ctx, field, rv, tenantID); err != nil {
			db.AddError(err)
		}
	}
}

func fillOne(ctx context.Context, field *schema.Field, rv reflect.Value, tenantID uuid.UUID) error {
	if rv.Kind() != reflect.Struct || !rv.CanAddr() {
		return nil
	}
	value, zero := field.ValueOf(ctx, rv)
	if zero {
		return field.Set(ctx, rv, tenantID)
	}
	if current, ok := value.(uuid.UUID); ok && current != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
