// Package mock provides an in-memory database.Store for testing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/fingerprint"
)

var errDuplicateDigest = errors.New("UNIQUE constraint failed: photos.digest")

// Store is an in-memory implementation of database.Store. Ids start at 1
// and are assigned in insertion order per table.
type Store struct {
	mu sync.RWMutex

	photos      map[int64]database.Photo
	people      map[int64]database.Person
	appearances map[int64]database.Appearance
	avatars     map[int64]database.Avatar
	next        map[string]int64

	// Error injection
	InsertPhotoError      error
	FindPhotoError        error
	GetPhotoError         error
	CountPerDayError      error
	PhotosForDayError     error
	InsertPersonError     error
	GetPersonError        error
	ListPeopleError       error
	UpdatePersonError     error
	MergeError            error
	InsertAppearanceError error
	KnownFacesError       error
	GetAppearanceError    error
	InsertAvatarError     error
	AvatarError           error
	MigrateError          error
	PingError             error

	// Call tracking
	KnownFacesCalls int
	Closed          bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		photos:      make(map[int64]database.Photo),
		people:      make(map[int64]database.Person),
		appearances: make(map[int64]database.Appearance),
		avatars:     make(map[int64]database.Avatar),
		next:        make(map[string]int64),
	}
}

var _ database.Store = (*Store)(nil)

func (m *Store) nextID(table string) int64 {
	m.next[table]++
	return m.next[table]
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return database.WrapError(op, err)
}

// Photos returns a snapshot of every stored photo in id order.
func (m *Store) Photos() []database.Photo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Photo, 0, len(m.photos))
	for _, p := range m.photos {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// People returns a snapshot of every stored person in id order.
func (m *Store) People() []database.Person {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Person, 0, len(m.people))
	for _, p := range m.people {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Appearances returns a snapshot of every stored appearance in id order.
func (m *Store) Appearances() []database.Appearance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedAppearances(func(database.Appearance) bool { return true })
}

// Avatars returns a snapshot of every stored avatar in id order.
func (m *Store) Avatars() []database.Avatar {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Avatar, 0, len(m.avatars))
	for _, a := range m.avatars {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddPerson stores a fully named person and returns its id.
func (m *Store) AddPerson(p database.Person) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID("people")
	m.people[p.ID] = p
	return p.ID
}

func (m *Store) sortedAppearances(keep func(database.Appearance) bool) []database.Appearance {
	var out []database.Appearance
	for _, a := range m.appearances {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// hasEveryone reports whether the photo contains all the people.
func (m *Store) hasEveryone(photo int64, people []int64) bool {
	for _, person := range people {
		found := false
		for _, a := range m.appearances {
			if a.Photo == photo && a.Person == person {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// InsertPhoto records a photo. Duplicate digests fail like a unique index.
func (m *Store) InsertPhoto(ctx context.Context, photo database.NewPhoto) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrap("insert photo", err)
	}
	if m.InsertPhotoError != nil {
		return 0, m.InsertPhotoError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.photos {
		if p.Digest == photo.Digest {
			return 0, wrap("insert photo", errDuplicateDigest)
		}
	}

	p := database.Photo{
		ID:             m.nextID("photos"),
		Digest:         photo.Digest,
		FileName:       photo.FileName,
		ImageWidth:     photo.ImageWidth,
		ImageHeight:    photo.ImageHeight,
		ThumbWidth:     photo.ThumbWidth,
		ThumbHeight:    photo.ThumbHeight,
		UploadDatetime: photo.UploadDatetime.UTC().Truncate(time.Second),
	}
	if photo.OriginalDatetime != nil {
		t := photo.OriginalDatetime.UTC().Truncate(time.Second)
		p.OriginalDatetime = &t
	}
	m.photos[p.ID] = p
	return p.ID, nil
}

// FindPhotoByDigest returns the id of the photo with the digest.
func (m *Store) FindPhotoByDigest(ctx context.Context, digest fingerprint.Digest) (int64, bool, error) {
	if m.FindPhotoError != nil {
		return 0, false, m.FindPhotoError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.photos {
		if p.Digest == digest {
			return p.ID, true, nil
		}
	}
	return 0, false, nil
}

// GetPhoto returns the photo, or nil.
func (m *Store) GetPhoto(ctx context.Context, id int64) (*database.Photo, error) {
	if m.GetPhotoError != nil {
		return nil, m.GetPhotoError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// CountPerDay counts photos per UTC day, newest first.
func (m *Store) CountPerDay(ctx context.Context, people []int64) ([]database.DayCount, error) {
	if m.CountPerDayError != nil {
		return nil, m.CountPerDayError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[time.Time]int)
	for _, p := range m.photos {
		if m.hasEveryone(p.ID, people) {
			counts[utcDay(p.TakenAt())]++
		}
	}
	out := make([]database.DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, database.DayCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// PhotosForDay returns the photos taken on the UTC day.
func (m *Store) PhotosForDay(ctx context.Context, day time.Time, people []int64) ([]database.Photo, error) {
	if m.PhotosForDayError != nil {
		return nil, m.PhotosForDayError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := utcDay(day)
	var out []database.Photo
	for _, p := range m.photos {
		if utcDay(p.TakenAt()).Equal(start) && m.hasEveryone(p.ID, people) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].TakenAt(), out[j].TakenAt()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// InsertPlaceholderPerson mints a person with placeholder names.
func (m *Store) InsertPlaceholderPerson(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrap("insert person", err)
	}
	if m.InsertPersonError != nil {
		return 0, m.InsertPersonError
	}
	middle := constants.PlaceholderMiddleNames
	m.mu.Lock()
	defer m.mu.Unlock()
	p := database.Person{
		ID:          m.nextID("people"),
		FirstName:   constants.PlaceholderFirstName,
		MiddleNames: &middle,
		Surname:     constants.PlaceholderSurname,
	}
	m.people[p.ID] = p
	return p.ID, nil
}

// GetPerson returns the person, or nil.
func (m *Store) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	if m.GetPersonError != nil {
		return nil, m.GetPersonError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.people[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListPeople returns everyone ordered by surname, first name and id.
func (m *Store) ListPeople(ctx context.Context) ([]database.Person, error) {
	if m.ListPeopleError != nil {
		return nil, m.ListPeopleError
	}
	out := m.People()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Surname != out[j].Surname {
			return out[i].Surname < out[j].Surname
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdatePerson overwrites the person.
func (m *Store) UpdatePerson(ctx context.Context, person database.Person) error {
	if m.UpdatePersonError != nil {
		return m.UpdatePersonError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[person.ID]; !ok {
		return database.ErrNoSuchRecord
	}
	if person.DOB != nil {
		dob := utcDay(*person.DOB)
		person.DOB = &dob
	}
	m.people[person.ID] = person
	return nil
}

// MergePeople folds src into dst.
func (m *Store) MergePeople(ctx context.Context, dst, src int64) error {
	if dst == src {
		return database.ErrSelfMerge
	}
	if m.MergeError != nil {
		return m.MergeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[dst]; !ok {
		return fmt.Errorf("merge target %d: %w", dst, database.ErrNoSuchRecord)
	}
	if _, ok := m.people[src]; !ok {
		return database.ErrNoSuchRecord
	}
	for id, a := range m.avatars {
		if a.Person == src {
			delete(m.avatars, id)
		}
	}
	for id, a := range m.appearances {
		if a.Person == src {
			a.Person = dst
			m.appearances[id] = a
		}
	}
	delete(m.people, src)
	return nil
}

// InsertAppearance records an appearance. Unknown people or photos fail
// like a foreign key.
func (m *Store) InsertAppearance(ctx context.Context, a database.Appearance) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrap("insert appearance", err)
	}
	if m.InsertAppearanceError != nil {
		return 0, m.InsertAppearanceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[a.Person]; !ok {
		return 0, wrap("insert appearance", fmt.Errorf("FOREIGN KEY constraint failed: person %d", a.Person))
	}
	if _, ok := m.photos[a.Photo]; !ok {
		return 0, wrap("insert appearance", fmt.Errorf("FOREIGN KEY constraint failed: photo %d", a.Photo))
	}
	a.ID = m.nextID("appearances")
	m.appearances[a.ID] = a
	return a.ID, nil
}

// KnownFaces returns the reference embeddings in id order.
func (m *Store) KnownFaces(ctx context.Context) ([]database.KnownFace, error) {
	m.mu.Lock()
	m.KnownFacesCalls++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, wrap("fetch known faces", err)
	}
	if m.KnownFacesError != nil {
		return nil, m.KnownFacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.KnownFace
	for _, a := range m.sortedAppearances(func(a database.Appearance) bool { return a.Reference }) {
		out = append(out, database.KnownFace{Person: a.Person, Embedding: a.Embedding})
	}
	return out, nil
}

// AppearancesForPhoto returns the photo's appearances in id order.
func (m *Store) AppearancesForPhoto(ctx context.Context, photo int64) ([]database.Appearance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedAppearances(func(a database.Appearance) bool { return a.Photo == photo }), nil
}

// GetAppearance returns the appearance, or nil.
func (m *Store) GetAppearance(ctx context.Context, id int64) (*database.Appearance, error) {
	if m.GetAppearanceError != nil {
		return nil, m.GetAppearanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appearances[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// InsertAvatar records a person's avatar.
func (m *Store) InsertAvatar(ctx context.Context, person, appearance int64) (int64, error) {
	if m.InsertAvatarError != nil {
		return 0, m.InsertAvatarError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[person]; !ok {
		return 0, wrap("insert avatar", fmt.Errorf("FOREIGN KEY constraint failed: person %d", person))
	}
	if _, ok := m.appearances[appearance]; !ok {
		return 0, wrap("insert avatar", fmt.Errorf("FOREIGN KEY constraint failed: appearance %d", appearance))
	}
	a := database.Avatar{ID: m.nextID("avatars"), Person: person, Appearance: appearance}
	m.avatars[a.ID] = a
	return a.ID, nil
}

func (m *Store) sourceFor(appearance int64) *database.AvatarSource {
	a, ok := m.appearances[appearance]
	if !ok {
		return nil
	}
	p, ok := m.photos[a.Photo]
	if !ok {
		return nil
	}
	return &database.AvatarSource{FileName: p.FileName, Top: a.Top, Left: a.Left, Bottom: a.Bottom, Right: a.Right}
}

// AvatarForPerson returns the source of the person's first avatar, or nil.
func (m *Store) AvatarForPerson(ctx context.Context, person int64) (*database.AvatarSource, error) {
	if m.AvatarError != nil {
		return nil, m.AvatarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var first *database.Avatar
	for _, a := range m.avatars {
		if a.Person == person && (first == nil || a.ID < first.ID) {
			a := a
			first = &a
		}
	}
	if first == nil {
		return nil, nil
	}
	return m.sourceFor(first.Appearance), nil
}

// AvatarSourceForAppearance returns the appearance's face box, or nil.
func (m *Store) AvatarSourceForAppearance(ctx context.Context, appearance int64) (*database.AvatarSource, error) {
	if m.AvatarError != nil {
		return nil, m.AvatarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sourceFor(appearance), nil
}

// Migrate is a no-op.
func (m *Store) Migrate(ctx context.Context) ([]string, error) {
	if m.MigrateError != nil {
		return nil, m.MigrateError
	}
	return nil, nil
}

// Ping returns PingError.
func (m *Store) Ping(ctx context.Context) error {
	return m.PingError
}

// Close marks the store closed.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
