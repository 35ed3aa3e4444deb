package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

// memStore is an in-memory storage.Storage.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Put(_ context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return storage.ObjectInfo{Key: key, Size: int64(len(b)), ETag: fmt.Sprintf(`"etag-%d"`, len(s.objects)), ContentType: opt.ContentType}, nil
}

func (s *memStore) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (s *memStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	return err == nil, nil
}

func (s *memStore) Move(_ context.Context, src, dst string) (storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[src]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	s.objects[dst] = b
	delete(s.objects, src)
	return storage.ObjectInfo{Key: dst, Size: int64(len(b)), ETag: `"moved-` + dst + `"`}, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.test/" + key + "?op=get&ttl=" + expiry.String(), nil
}

func (s *memStore) PresignPut(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.test/" + key + "?op=put&ttl=" + expiry.String(), nil
}

func (s *memStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// memDB backs the document, permission and user repositories with one set of maps.
type memDB struct {
	mu     sync.Mutex
	docs   map[uuid.UUID]model.Document
	perms  map[uuid.UUID]model.DocumentPermission
	users  map[uuid.UUID]model.User
	audits []model.AuditEntry
}

func newMemDB(users ...model.User) *memDB {
	db := &memDB{
		docs:  map[uuid.UUID]model.Document{},
		perms: map[uuid.UUID]model.DocumentPermission{},
		users: map[uuid.UUID]model.User{},
	}
	for _, u := range users {
		db.users[u.ID] = u
	}
	return db
}

func (db *memDB) actions(documentID uuid.UUID) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []string
	for _, a := range db.audits {
		if a.DocumentID == documentID {
			out = append(out, a.Action)
		}
	}
	return out
}

type memDocs struct{ db *memDB }

func (r memDocs) Save(_ context.Context, doc model.Document, audit ...model.AuditEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.docs[doc.ID] = doc
	r.db.audits = append(r.db.audits, audit...)
	return nil
}

func (r memDocs) FindByID(_ context.Context, id uuid.UUID) (model.Document, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	doc, ok := r.db.docs[id]
	if !ok {
		return model.Document{}, &model.NotFoundError{EntityType: model.EntityDocument, ID: id.String()}
	}
	return doc, nil
}

func (r memDocs) find(match func(model.DocumentVersion) bool) (model.Document, bool) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, doc := range r.db.docs {
		for _, v := range doc.Versions() {
			if match(v) {
				return doc, true
			}
		}
	}
	return model.Document{}, false
}

func (r memDocs) FindByChecksum(_ context.Context, checksum model.Checksum) (model.Document, error) {
	doc, ok := r.find(func(v model.DocumentVersion) bool { return v.Checksum == checksum })
	if !ok {
		return model.Document{}, &model.NotFoundError{EntityType: model.EntityDocument, ID: string(checksum)}
	}
	return doc, nil
}

func (r memDocs) FindByContentRef(_ context.Context, ref model.ContentRef) (model.Document, error) {
	doc, ok := r.find(func(v model.DocumentVersion) bool { return v.ContentRef == ref })
	if !ok {
		return model.Document{}, &model.NotFoundError{EntityType: model.EntityDocument, ID: string(ref)}
	}
	return doc, nil
}

func (r memDocs) FindByFilenameAndUser(_ context.Context, filename model.Filename, userID uuid.UUID) (model.Document, error) {
	docs := r.filter(func(d model.Document) bool { return d.Filename == filename && d.UploadedBy == userID })
	if len(docs) == 0 {
		return model.Document{}, &model.NotFoundError{EntityType: model.EntityDocument, ID: string(filename)}
	}
	return docs[0], nil
}

func (r memDocs) ListByUser(_ context.Context, userID uuid.UUID, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	return r.page(r.filter(func(d model.Document) bool { return r.accessible(d, userID) }), pq), nil
}

func (r memDocs) ListAll(_ context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	return r.page(r.filter(func(model.Document) bool { return true }), pq), nil
}

func (r memDocs) Search(_ context.Context, sq repository.SearchQuery, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	term := strings.ToLower(sq.Term)
	return r.page(r.filter(func(d model.Document) bool {
		if sq.AccessibleTo != uuid.Nil && !r.accessible(d, sq.AccessibleTo) {
			return false
		}
		return strings.Contains(strings.ToLower(string(d.Filename)), term) ||
			strings.Contains(strings.ToLower(d.OriginalName), term)
	}), pq), nil
}

func (r memDocs) Delete(_ context.Context, id uuid.UUID, audit ...model.AuditEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.docs[id]; !ok {
		return &model.NotFoundError{EntityType: model.EntityDocument, ID: id.String()}
	}
	delete(r.db.docs, id)
	for pid, p := range r.db.perms {
		if p.DocumentID == id {
			delete(r.db.perms, pid)
		}
	}
	r.db.audits = append(r.db.audits, audit...)
	return nil
}

func (r memDocs) AddAudit(_ context.Context, entry model.AuditEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.audits = append(r.db.audits, entry)
	return nil
}

// accessible must be called with db.mu held.
func (r memDocs) accessible(d model.Document, userID uuid.UUID) bool {
	if d.UploadedBy == userID {
		return true
	}
	for _, p := range r.db.perms {
		if p.DocumentID == d.ID && p.UserID == userID {
			return true
		}
	}
	return false
}

// filter returns headers newest first.
func (r memDocs) filter(keep func(model.Document) bool) []model.Document {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Document
	for _, d := range r.db.docs {
		if keep(d) {
			out = append(out, model.RestoreDocument(d, nil))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r memDocs) page(all []model.Document, pq repository.PageQuery) *repository.PageResult[model.Document] {
	items := []model.Document{}
	if pq.Offset < len(all) {
		end := min(pq.Offset+pq.Limit, len(all))
		items = all[pq.Offset:end]
	}
	return &repository.PageResult[model.Document]{Items: items, Total: len(all)}
}

type memPerms struct{ db *memDB }

func (r memPerms) Save(_ context.Context, p model.DocumentPermission, audit ...model.AuditEntry) (uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	// Same upsert key as the database: one row per (document, user), the first ID wins.
	for id, existing := range r.db.perms {
		if existing.DocumentID == p.DocumentID && existing.UserID == p.UserID {
			p.ID = id
		}
	}
	r.db.perms[p.ID] = p
	r.db.audits = append(r.db.audits, audit...)
	return p.ID, nil
}

func (r memPerms) FindByID(_ context.Context, id uuid.UUID) (model.DocumentPermission, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.perms[id]
	if !ok {
		return model.DocumentPermission{}, &model.NotFoundError{EntityType: model.EntityPermission, ID: id.String()}
	}
	return p, nil
}

func (r memPerms) where(keep func(model.DocumentPermission) bool) []model.DocumentPermission {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.DocumentPermission
	for _, p := range r.db.perms {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (r memPerms) FindByDocument(_ context.Context, documentID uuid.UUID) ([]model.DocumentPermission, error) {
	return r.where(func(p model.DocumentPermission) bool { return p.DocumentID == documentID }), nil
}

func (r memPerms) FindByUserAndDocument(_ context.Context, userID, documentID uuid.UUID) (model.DocumentPermission, error) {
	found := r.where(func(p model.DocumentPermission) bool { return p.DocumentID == documentID && p.UserID == userID })
	if len(found) == 0 {
		return model.DocumentPermission{}, &model.NotFoundError{EntityType: model.EntityPermission, ID: userID.String() + "/" + documentID.String()}
	}
	return found[0], nil
}

func (r memPerms) FindByUser(_ context.Context, userID uuid.UUID) ([]model.DocumentPermission, error) {
	return r.where(func(p model.DocumentPermission) bool { return p.UserID == userID }), nil
}

func (r memPerms) Delete(_ context.Context, id uuid.UUID, audit ...model.AuditEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.perms[id]; !ok {
		return &model.NotFoundError{EntityType: model.EntityPermission, ID: id.String()}
	}
	delete(r.db.perms, id)
	r.db.audits = append(r.db.audits, audit...)
	return nil
}

func (r memPerms) HasPermission(_ context.Context, userID, documentID uuid.UUID, level model.PermissionType) (bool, error) {
	found := r.where(func(p model.DocumentPermission) bool {
		return p.DocumentID == documentID && p.UserID == userID && p.Permission.Satisfies(level)
	})
	return len(found) > 0, nil
}

func (r memPerms) DeleteByDocument(_ context.Context, documentID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, p := range r.db.perms {
		if p.DocumentID == documentID {
			delete(r.db.perms, id)
		}
	}
	return nil
}

type memUsers struct{ db *memDB }

func (r memUsers) FindByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return model.User{}, &model.NotFoundError{EntityType: model.EntityUser, ID: id.String()}
	}
	return u, nil
}
