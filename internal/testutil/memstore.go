// Package testutil dobles en memoria de los puertos del motor de DTE para tests de casos de uso.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/domain/repository"
)

// Store guarda documentos, ventas y gastos en memoria con las mismas reglas de unicidad que los
// índices de Postgres: clave natural, un documento vigente por origen y una venta por
// external_sale_id. RunDTE revierte los cambios si la función devuelve error.
type Store struct {
	mu    sync.Mutex
	seq   int
	docs  map[string]*entity.TaxDocument
	items map[string][]*entity.TaxDocumentItem
	sales map[string]*entity.POSTransaction
	costs map[string]*entity.Cost

	// FailNextCreate hace fallar el próximo Create de documento con este error.
	FailNextCreate error
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		docs:  map[string]*entity.TaxDocument{},
		items: map[string][]*entity.TaxDocumentItem{},
		sales: map[string]*entity.POSTransaction{},
		costs: map[string]*entity.Cost{},
	}
}

// Docs repositorio de documentos.
func (s *Store) Docs() *DocRepo { return &DocRepo{s: s} }

// Sales repositorio de ventas POS.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s: s} }

// Costs repositorio de gastos.
func (s *Store) Costs() *CostRepo { return &CostRepo{s: s} }

// AddCost registra un gasto de prueba.
func (s *Store) AddCost(c *entity.Cost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.costs[c.ID] = &cp
}

// AddSale registra una venta de prueba sin pasar por las reglas de unicidad.
func (s *Store) AddSale(tx *entity.POSTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales[tx.ID] = cloneSale(tx)
}

// AddDocument registra un documento ya existente con sus líneas.
func (s *Store) AddDocument(doc *entity.TaxDocument, items ...*entity.TaxDocumentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = cloneDoc(doc)
	for _, it := range items {
		cp := *it
		cp.TaxDocumentID = doc.ID
		s.items[doc.ID] = append(s.items[doc.ID], &cp)
	}
}

// Documents devuelve copias de todos los documentos ordenados por creación.
func (s *Store) Documents() []*entity.TaxDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.TaxDocument, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, cloneDoc(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SaleCount cantidad de ventas registradas.
func (s *Store) SaleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

// RunDTE ejecuta fn con los repositorios del store y revierte si falla.
func (s *Store) RunDTE(ctx context.Context, fn func(repository.TaxDocumentRepository, repository.POSTransactionRepository) error) error {
	snap := s.snapshot()
	if err := fn(s.Docs(), s.Sales()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	docs  map[string]*entity.TaxDocument
	items map[string][]*entity.TaxDocumentItem
	sales map[string]*entity.POSTransaction
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		docs:  make(map[string]*entity.TaxDocument, len(s.docs)),
		items: make(map[string][]*entity.TaxDocumentItem, len(s.items)),
		sales: make(map[string]*entity.POSTransaction, len(s.sales)),
	}
	for k, v := range s.docs {
		snap.docs[k] = cloneDoc(v)
	}
	for k, v := range s.items {
		snap.items[k] = cloneItems(v)
	}
	for k, v := range s.sales {
		snap.sales[k] = cloneSale(v)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs, s.items, s.sales = snap.docs, snap.items, snap.sales
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%04d", prefix, s.seq)
}

// ── Documentos ────────────────────────────────────────────────────────────────

// DocRepo implementa repository.TaxDocumentRepository.
type DocRepo struct{ s *Store }

var _ repository.TaxDocumentRepository = (*DocRepo)(nil)

func (r *DocRepo) Create(_ context.Context, doc *entity.TaxDocument) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailNextCreate; err != nil {
		s.FailNextCreate = nil
		return err
	}
	if doc.ID == "" {
		doc.ID = s.nextID("doc")
	}
	if err := s.checkUnique(doc); err != nil {
		return err
	}
	s.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r *DocRepo) CreateItem(_ context.Context, item *entity.TaxDocumentItem) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[item.TaxDocumentID]; !ok {
		return fmt.Errorf("documento %s no existe", item.TaxDocumentID)
	}
	if item.ID == "" {
		item.ID = s.nextID("item")
	}
	cp := *item
	s.items[item.TaxDocumentID] = append(s.items[item.TaxDocumentID], &cp)
	return nil
}

func (r *DocRepo) GetByID(_ context.Context, id string) (*entity.TaxDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d, ok := r.s.docs[id]; ok {
		return cloneDoc(d), nil
	}
	return nil, nil
}

func (r *DocRepo) GetItems(_ context.Context, documentID string) ([]*entity.TaxDocumentItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := cloneItems(r.s.items[documentID])
	sort.SliceStable(items, func(i, j int) bool { return items[i].LineNumber < items[j].LineNumber })
	return items, nil
}

func (r *DocRepo) FindActiveBySourcePOS(_ context.Context, tenantID, posTransactionID string) (*entity.TaxDocument, error) {
	return r.findActive(func(d *entity.TaxDocument) bool {
		return d.TenantID == tenantID && d.SourcePOSTransactionID == posTransactionID
	}), nil
}

func (r *DocRepo) FindActiveBySourceCost(_ context.Context, tenantID, costID string) (*entity.TaxDocument, error) {
	return r.findActive(func(d *entity.TaxDocument) bool {
		return d.TenantID == tenantID && d.SourceCostID == costID
	}), nil
}

func (r *DocRepo) findActive(match func(*entity.TaxDocument) bool) *entity.TaxDocument {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if !d.Superseded() && match(d) {
			return cloneDoc(d)
		}
	}
	return nil
}

func (r *DocRepo) FindByNaturalKey(_ context.Context, tenantID string, key entity.NaturalKey) (*entity.TaxDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d := r.s.byNaturalKey(tenantID, key, ""); d != nil {
		return cloneDoc(d), nil
	}
	return nil, nil
}

func (r *DocRepo) ExistsByNaturalKey(ctx context.Context, tenantID string, key entity.NaturalKey) (bool, error) {
	d, err := r.FindByNaturalKey(ctx, tenantID, key)
	return d != nil, err
}

func (r *DocRepo) UpdateEmission(_ context.Context, doc *entity.TaxDocument) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.Folio != "" && s.byNaturalKey(doc.TenantID, doc.NaturalKey(), doc.ID) != nil {
		return domain.ErrDuplicateNaturalKey
	}
	cur.Status = doc.Status
	cur.Folio = doc.Folio
	cur.ExternalDocumentID = doc.ExternalDocumentID
	cur.PDFURL = doc.PDFURL
	cur.XMLURL = doc.XMLURL
	cur.IssuedAt = doc.IssuedAt
	cur.RawExternalResponse = append([]byte(nil), doc.RawExternalResponse...)
	cur.LastError = doc.LastError
	return nil
}

func (r *DocRepo) MarkSuperseded(_ context.Context, id, replacementID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Superseded() {
		return domain.ErrConflict
	}
	d.SupersededByID = replacementID
	return nil
}

func (s *Store) checkUnique(doc *entity.TaxDocument) error {
	if doc.Folio != "" && s.byNaturalKey(doc.TenantID, doc.NaturalKey(), doc.ID) != nil {
		return domain.ErrDuplicateNaturalKey
	}
	if doc.Superseded() {
		return nil
	}
	for _, d := range s.docs {
		if d.Superseded() || d.ID == doc.ID {
			continue
		}
		if doc.SourcePOSTransactionID != "" && d.SourcePOSTransactionID == doc.SourcePOSTransactionID {
			return domain.ErrAlreadyConverted
		}
		if doc.SourceCostID != "" && d.SourceCostID == doc.SourceCostID {
			return domain.ErrAlreadyConverted
		}
	}
	return nil
}

func (s *Store) byNaturalKey(tenantID string, key entity.NaturalKey, exceptID string) *entity.TaxDocument {
	for _, d := range s.docs {
		if d.ID != exceptID && d.TenantID == tenantID && d.Folio != "" && d.NaturalKey() == key {
			return d
		}
	}
	return nil
}

// ── Ventas y gastos ───────────────────────────────────────────────────────────

// SaleRepo implementa repository.POSTransactionRepository.
type SaleRepo struct{ s *Store }

var _ repository.POSTransactionRepository = (*SaleRepo)(nil)

func (r *SaleRepo) Create(_ context.Context, tx *entity.POSTransaction) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sales {
		if existing.TenantID == tx.TenantID && existing.ExternalSaleID == tx.ExternalSaleID {
			return domain.ErrDuplicateSale
		}
	}
	if tx.ID == "" {
		tx.ID = s.nextID("pos")
	}
	s.sales[tx.ID] = cloneSale(tx)
	return nil
}

func (r *SaleRepo) GetByID(_ context.Context, id string) (*entity.POSTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tx, ok := r.s.sales[id]; ok {
		return cloneSale(tx), nil
	}
	return nil, nil
}

// FindByExternalID busca una venta por su identificador resuelto.
func (r *SaleRepo) FindByExternalID(tenantID, externalSaleID string) *entity.POSTransaction {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tx := range r.s.sales {
		if tx.TenantID == tenantID && tx.ExternalSaleID == externalSaleID {
			return cloneSale(tx)
		}
	}
	return nil
}

// CostRepo implementa repository.CostRepository.
type CostRepo struct{ s *Store }

var _ repository.CostRepository = (*CostRepo)(nil)

func (r *CostRepo) GetByID(_ context.Context, id string) (*entity.Cost, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.costs[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func cloneDoc(d *entity.TaxDocument) *entity.TaxDocument {
	cp := *d
	if d.IssuedAt != nil {
		t := *d.IssuedAt
		cp.IssuedAt = &t
	}
	cp.RawExternalResponse = append([]byte(nil), d.RawExternalResponse...)
	return &cp
}

func cloneItems(items []*entity.TaxDocumentItem) []*entity.TaxDocumentItem {
	out := make([]*entity.TaxDocumentItem, len(items))
	for i, it := range items {
		cp := *it
		out[i] = &cp
	}
	return out
}

func cloneSale(tx *entity.POSTransaction) *entity.POSTransaction {
	cp := *tx
	cp.Items = append([]entity.POSTransactionItem(nil), tx.Items...)
	return &cp
}
