// Package memory is an in-process Catalog used by tests, dry runs and
// race simulations. It mimics the remote semantics that matter for
// reconciliation: server-issued ids, monotonically increasing versions,
// placeholder resolution, idempotency-key replay and partial deletes.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"menusync/internal/backend"
	"menusync/internal/errs"
)

type Option func(*Catalog)

// WithoutCategoryListing makes ListObjects refuse CATEGORY, forcing
// callers onto item-derived discovery.
func WithoutCategoryListing() Option {
	return func(c *Catalog) { c.noCategoryListing = true }
}

// WithIDPrefix sets the prefix of issued ids (default "MEM").
func WithIDPrefix(p string) Option {
	return func(c *Catalog) { c.prefix = p }
}

type Catalog struct {
	mu sync.Mutex

	prefix            string
	noCategoryListing bool

	seq     int64
	clock   int64
	order   []string
	objects map[string]*backend.Object
	replay  map[string][]backend.Object

	locations []backend.Location
	failLoc   *errs.APIError
	failDel   map[string]errs.APIError

	upserts int
	deletes int
}

var _ backend.Catalog = (*Catalog)(nil)

func New(opts ...Option) *Catalog {
	c := &Catalog{
		prefix:  "MEM",
		objects: map[string]*backend.Object{},
		replay:  map[string][]backend.Object{},
		failDel: map[string]errs.APIError{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Catalog) newID() string {
	c.seq++
	return fmt.Sprintf("%s%06d", c.prefix, c.seq)
}

func (c *Catalog) tick() int64 {
	c.clock++
	return c.clock
}

// Inject stores obj directly, bypassing idempotency and version checks.
// An empty or placeholder id is replaced with a fresh one and a zero version
// with the next clock value. It returns the stored copy.
func (c *Catalog) Inject(obj backend.Object) backend.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := clone(obj)
	if o.ID == "" || backend.IsPlaceholderID(o.ID) {
		o.ID = c.newID()
	}
	if o.Version == 0 {
		o.Version = c.tick()
	} else if o.Version > c.clock {
		c.clock = o.Version
	}
	if o.ItemData != nil {
		for i := range o.ItemData.Variations {
			v := &o.ItemData.Variations[i]
			if v.ID == "" || backend.IsPlaceholderID(v.ID) {
				v.ID = c.newID()
			}
			v.Version = o.Version
			if v.ItemVariationData != nil {
				v.ItemVariationData.ItemID = o.ID
			}
		}
	}
	if _, ok := c.objects[o.ID]; !ok {
		c.order = append(c.order, o.ID)
	}
	c.objects[o.ID] = &o
	return clone(o)
}

// FailDelete makes a later BatchDelete report an error for id instead of deleting it.
func (c *Catalog) FailDelete(id string, e errs.APIError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failDel[id] = e
}

// FailLocations makes later ListLocations calls report e, the way a
// rejected access token surfaces on the first authenticated call.
func (c *Catalog) FailLocations(e errs.APIError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLoc = &e
}

func (c *Catalog) SetLocations(locs ...backend.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locations = append([]backend.Location(nil), locs...)
}

// Upserts returns the number of BatchUpsert calls that reached the store.
func (c *Catalog) Upserts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upserts
}

// Deletes returns the number of BatchDelete calls.
func (c *Catalog) Deletes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deletes
}

// Has reports whether id is currently stored.
func (c *Catalog) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.objects[id]
	return ok
}

func (c *Catalog) ListObjects(ctx context.Context, types ...backend.ObjectType) ([]backend.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := map[backend.ObjectType]bool{}
	for _, t := range types {
		if t == backend.TypeCategory && c.noCategoryListing {
			return nil, fmt.Errorf("%w: %s", backend.ErrListingUnsupported, t)
		}
		want[t] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []backend.Object
	for _, id := range c.order {
		o, ok := c.objects[id]
		if !ok || !want[o.Type] {
			continue
		}
		out = append(out, clone(*o))
	}
	return out, nil
}

func (c *Catalog) SearchItems(ctx context.Context) ([]backend.ObjectSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []backend.ObjectSummary
	for _, id := range c.order {
		o, ok := c.objects[id]
		if !ok || o.Type != backend.TypeItem {
			continue
		}
		out = append(out, backend.ObjectSummary{ID: o.ID, Type: o.Type, Name: o.Name(), Version: o.Version})
	}
	return out, nil
}

func (c *Catalog) BatchGet(ctx context.Context, ids []string) (backend.BatchGetResult, error) {
	if err := ctx.Err(); err != nil {
		return backend.BatchGetResult{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var res backend.BatchGetResult
	related := map[string]bool{}
	for _, id := range ids {
		o, ok := c.objects[id]
		if !ok {
			continue
		}
		res.Objects = append(res.Objects, clone(*o))
		if cid := o.CategoryID(); cid != "" && !related[cid] {
			if cat, ok := c.objects[cid]; ok {
				related[cid] = true
				res.RelatedObjects = append(res.RelatedObjects, clone(*cat))
			}
		}
	}
	return res, nil
}

func (c *Catalog) BatchUpsert(ctx context.Context, key string, objects []backend.Object) ([]backend.Object, []backend.IDMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.replay[key]; ok && key != "" {
		return cloneAll(prev), nil, nil
	}

	for _, o := range objects {
		if err := o.Validate(); err != nil {
			return nil, nil, errs.NewBackendError("batch-upsert", errs.APIError{
				Category: "INVALID_REQUEST_ERROR", Code: "INVALID_VALUE", Detail: err.Error(),
			})
		}
		if backend.IsPlaceholderID(o.ID) {
			continue
		}
		cur, ok := c.objects[o.ID]
		if !ok {
			return nil, nil, errs.NewBackendError("batch-upsert", errs.APIError{
				Category: "INVALID_REQUEST_ERROR", Code: "NOT_FOUND",
				Detail: fmt.Sprintf("Object with id %s not found", o.ID), Field: "id",
			})
		}
		if o.Version != 0 && o.Version != cur.Version {
			return nil, nil, errs.NewBackendError("batch-upsert", errs.APIError{
				Category: "INVALID_REQUEST_ERROR", Code: "VERSION_MISMATCH",
				Detail: fmt.Sprintf("Object version does not match for object: %s", o.ID), Field: "version",
			})
		}
	}

	c.upserts++
	mapping := map[string]string{}
	resolve := func(id string) string {
		if backend.IsPlaceholderID(id) {
			if v, ok := mapping[id]; ok {
				return v
			}
			n := c.newID()
			mapping[id] = n
			return n
		}
		return id
	}

	var out []backend.Object
	for _, in := range objects {
		o := clone(in)
		o.ID = resolve(o.ID)
		o.Version = c.tick()
		if o.ItemData != nil {
			if backend.IsPlaceholderID(o.ItemData.CategoryID) {
				o.ItemData.CategoryID = resolve(o.ItemData.CategoryID)
			}
			for i := range o.ItemData.Variations {
				v := &o.ItemData.Variations[i]
				v.ID = resolve(v.ID)
				v.Version = o.Version
				if v.ItemVariationData != nil {
					v.ItemVariationData.ItemID = o.ID
				}
			}
		}
		if _, ok := c.objects[o.ID]; !ok {
			c.order = append(c.order, o.ID)
		}
		stored := o
		c.objects[o.ID] = &stored
		out = append(out, clone(o))
	}

	var ids []backend.IDMapping
	for client, server := range mapping {
		ids = append(ids, backend.IDMapping{ClientObjectID: client, ObjectID: server})
	}
	if key != "" {
		c.replay[key] = cloneAll(out)
	}
	return out, ids, nil
}

func (c *Catalog) BatchDelete(ctx context.Context, ids []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	var deleted []string
	var failures []errs.APIError
	for _, id := range ids {
		if e, ok := c.failDel[id]; ok {
			failures = append(failures, e)
			continue
		}
		o, ok := c.objects[id]
		if !ok {
			continue
		}
		delete(c.objects, id)
		deleted = append(deleted, id)
		if o.ItemData != nil {
			for _, v := range o.ItemData.Variations {
				deleted = append(deleted, v.ID)
			}
		}
	}
	c.compact()
	if len(failures) > 0 {
		return deleted, errs.NewBackendError("batch-delete", failures...)
	}
	return deleted, nil
}

func (c *Catalog) compact() {
	kept := c.order[:0]
	for _, id := range c.order {
		if _, ok := c.objects[id]; ok {
			kept = append(kept, id)
		}
	}
	c.order = kept
}

func (c *Catalog) GetObject(ctx context.Context, id string) (backend.Object, error) {
	if err := ctx.Err(); err != nil {
		return backend.Object{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.objects[id]
	if !ok {
		return backend.Object{}, errs.NewBackendError("retrieve-object", errs.APIError{
			Category: "INVALID_REQUEST_ERROR", Code: "NOT_FOUND",
			Detail: fmt.Sprintf("Object with ID `%s` not found.", id),
		})
	}
	return clone(*o), nil
}

func (c *Catalog) CreateImage(ctx context.Context, key string, up backend.ImageUpload) (backend.Object, error) {
	if err := ctx.Err(); err != nil {
		return backend.Object{}, err
	}
	if up.Body != nil {
		if _, err := io.Copy(io.Discard, up.Body); err != nil {
			return backend.Object{}, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.replay[key]; ok && key != "" && len(prev) == 1 {
		return clone(prev[0]), nil
	}
	o := backend.Object{
		Type:      backend.TypeImage,
		ID:        c.newID(),
		Version:   c.tick(),
		ImageData: &backend.ImageData{Name: up.Filename, Caption: up.Caption, URL: "memory://" + up.Filename},
	}
	c.order = append(c.order, o.ID)
	stored := o
	c.objects[o.ID] = &stored
	if key != "" {
		c.replay[key] = []backend.Object{clone(o)}
	}
	return clone(o), nil
}

func (c *Catalog) ListLocations(ctx context.Context) ([]backend.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failLoc != nil {
		return nil, errs.NewBackendError("list-locations", *c.failLoc)
	}
	return append([]backend.Location(nil), c.locations...), nil
}

func (c *Catalog) CreateLocation(ctx context.Context, loc backend.Location) (backend.Location, error) {
	if err := ctx.Err(); err != nil {
		return backend.Location{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.locations {
		if l.Name == loc.Name {
			return backend.Location{}, errs.NewBackendError("create-location", errs.APIError{
				Category: "INVALID_REQUEST_ERROR", Code: "CONFLICT",
				Detail: fmt.Sprintf("location %q already exists", loc.Name), Field: "name",
			})
		}
	}
	loc.ID = "L" + c.newID()
	if loc.Status == "" {
		loc.Status = "ACTIVE"
	}
	if loc.Address != nil {
		a := *loc.Address
		loc.Address = &a
	}
	c.locations = append(c.locations, loc)
	return loc, nil
}

func cloneAll(in []backend.Object) []backend.Object {
	out := make([]backend.Object, len(in))
	for i, o := range in {
		out[i] = clone(o)
	}
	return out
}

func clone(o backend.Object) backend.Object {
	if o.CategoryData != nil {
		cd := *o.CategoryData
		o.CategoryData = &cd
	}
	if o.ImageData != nil {
		im := *o.ImageData
		o.ImageData = &im
	}
	if o.ItemVariationData != nil {
		vd := *o.ItemVariationData
		if vd.PriceMoney != nil {
			m := *vd.PriceMoney
			vd.PriceMoney = &m
		}
		o.ItemVariationData = &vd
	}
	if o.ItemData != nil {
		id := *o.ItemData
		id.ImageIDs = append([]string(nil), id.ImageIDs...)
		if id.Variations != nil {
			vs := make([]backend.Object, len(id.Variations))
			for i, v := range id.Variations {
				vs[i] = clone(v)
			}
			id.Variations = vs
		}
		o.ItemData = &id
	}
	return o
}
