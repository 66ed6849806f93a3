package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/lepinkainen/subreddit-ingest/internal/reddit"
	"github.com/lepinkainen/subreddit-ingest/internal/store"
	"github.com/lepinkainen/subreddit-ingest/pkg/api"
)

type fakeListing struct {
	listing *reddit.Listing
	err     error
	befores []string
}

func (f *fakeListing) FetchListing(_ context.Context, before string) (*reddit.Listing, error) {
	f.befores = append(f.befores, before)
	return f.listing, f.err
}

type fakePosts struct {
	existing  map[string]bool
	inserted  []store.NewPost
	insertErr map[string]error
	existsErr error
}

func newFakePosts(existing ...string) *fakePosts {
	f := &fakePosts{existing: map[string]bool{}, insertErr: map[string]error{}}
	for _, name := range existing {
		f.existing[name] = true
	}
	return f
}

func (f *fakePosts) ExistsByMeta(_ context.Context, key, value string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if key != MetaName {
		return false, fmt.Errorf("unexpected meta key %q", key)
	}
	return f.existing[value], nil
}

func (f *fakePosts) Insert(_ context.Context, post store.NewPost) (int64, error) {
	name := metaValue(post, MetaName)
	if err := f.insertErr[name]; err != nil {
		return 0, err
	}
	f.inserted = append(f.inserted, post)
	f.existing[name] = true
	return int64(len(f.inserted)), nil
}

type fakeOptions struct {
	values    map[string]string
	updateErr error
}

func (f *fakeOptions) Get(_ context.Context, name, def string) (string, error) {
	if v, ok := f.values[name]; ok {
		return v, nil
	}
	return def, nil
}

func (f *fakeOptions) Update(_ context.Context, name, value string) (bool, error) {
	if f.updateErr != nil {
		return false, f.updateErr
	}
	f.values[name] = value
	return true, nil
}

type fakeRecorder struct {
	statuses   []string
	items      map[string]int
	jsonErrors []string
}

func (f *fakeRecorder) RunFinished(status string, _ time.Duration, _ time.Time) {
	f.statuses = append(f.statuses, status)
}

func (f *fakeRecorder) Items(outcome string, n int) {
	if f.items == nil {
		f.items = map[string]int{}
	}
	f.items[outcome] += n
}

func (f *fakeRecorder) JSONError(kind string) {
	f.jsonErrors = append(f.jsonErrors, kind)
}

func metaValue(post store.NewPost, key string) string {
	for _, meta := range post.Meta {
		if meta.Key == key {
			return meta.Value
		}
	}
	return ""
}

func listingOf(posts ...reddit.Post) *reddit.Listing {
	listing := &reddit.Listing{}
	for _, post := range posts {
		listing.Data.Children = append(listing.Data.Children, reddit.Thing{Kind: "t3", Data: post})
	}
	return listing
}

func selfPost(name string) reddit.Post {
	return reddit.Post{
		Name:       name,
		Domain:     "self.wordpress",
		Title:      "Question " + name,
		SelfText:   "Body of " + name,
		URL:        "https://www.reddit.com/r/Wordpress/comments/" + name,
		CreatedUTC: 1709287200,
		Ups:        7,
		Author:     "alice",
	}
}

func linkPost(name string) reddit.Post {
	return reddit.Post{Name: name, Domain: "wordpress.org", Title: "Link " + name}
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Unix(1_720_000_000, 0) }
}

func newTestService(listing ListingPort, posts PostPort, options OptionPort, recorder Recorder) *Service {
	return New(listing, posts, options, Options{SelfDomain: "self.wordpress"}, recorder, fixedClock())
}

func TestService_Run_InsertsOnlySelfPosts(t *testing.T) {
	listing := &fakeListing{listing: listingOf(linkPost("t3_link"), selfPost("t3_a"), selfPost("t3_b"))}
	posts := newFakePosts()
	options := &fakeOptions{values: map[string]string{}}

	result, err := newTestService(listing, posts, options, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Fetched != 3 || result.ForeignDomain != 1 || result.Inserted != 2 {
		t.Errorf("Run() result = %+v", result)
	}
	for _, post := range posts.inserted {
		if name := metaValue(post, MetaName); name == "t3_link" {
			t.Errorf("foreign-domain entry %q was inserted", name)
		}
	}
}

func TestService_Run_DomainMatchIgnoresCase(t *testing.T) {
	mixed := selfPost("t3_mixed")
	mixed.Domain = "self.WordPress"
	listing := &fakeListing{listing: listingOf(mixed)}
	posts := newFakePosts()

	result, err := newTestService(listing, posts, &fakeOptions{values: map[string]string{}}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", result.Inserted)
	}
}

func TestService_Run_SkipsKnownNames(t *testing.T) {
	listing := &fakeListing{listing: listingOf(selfPost("t3_known"), selfPost("t3_new"))}
	posts := newFakePosts("t3_known")
	recorder := &fakeRecorder{}

	result, err := newTestService(listing, posts, &fakeOptions{values: map[string]string{}}, recorder).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Duplicates != 1 || result.Inserted != 1 {
		t.Errorf("Run() result = %+v", result)
	}
	if len(posts.inserted) != 1 || metaValue(posts.inserted[0], MetaName) != "t3_new" {
		t.Errorf("inserted = %+v, want only t3_new", posts.inserted)
	}
	if recorder.items[outcomeDuplicate] != 1 || recorder.items[outcomeInserted] != 1 {
		t.Errorf("recorded items = %v", recorder.items)
	}
}

func TestService_Run_RepeatedNameWithinListing(t *testing.T) {
	listing := &fakeListing{listing: listingOf(selfPost("t3_same"), selfPost("t3_same"))}
	posts := newFakePosts()

	result, err := newTestService(listing, posts, &fakeOptions{values: map[string]string{}}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Inserted != 1 || result.Duplicates != 1 {
		t.Errorf("Run() result = %+v", result)
	}
}

func TestService_Run_InsertDuplicateCountsAsSkip(t *testing.T) {
	listing := &fakeListing{listing: listingOf(selfPost("t3_race"))}
	posts := newFakePosts()
	posts.insertErr["t3_race"] = fmt.Errorf("%w: reddit_name=t3_race", store.ErrDuplicate)

	result, err := newTestService(listing, posts, &fakeOptions{values: map[string]string{}}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Duplicates != 1 || result.Failed != 0 {
		t.Errorf("Run() result = %+v", result)
	}
}

func TestService_Run_CursorFollowsFirstEntry(t *testing.T) {
	tests := []struct {
		name       string
		listing    *reddit.Listing
		stored     string
		wantCursor string
	}{
		{
			name:       "first entry is foreign",
			listing:    listingOf(linkPost("t3_first"), selfPost("t3_second")),
			stored:     "t3_old",
			wantCursor: "t3_first",
		},
		{
			name:       "first entry already known",
			listing:    listingOf(selfPost("t3_known")),
			stored:     "t3_old",
			wantCursor: "t3_known",
		},
		{
			name:       "empty listing keeps cursor",
			listing:    listingOf(),
			stored:     "t3_old",
			wantCursor: "t3_old",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing := &fakeListing{listing: tt.listing}
			options := &fakeOptions{values: map[string]string{CursorOption: tt.stored}}

			result, err := newTestService(listing, newFakePosts("t3_known"), options, nil).Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if listing.befores[0] != tt.stored {
				t.Errorf("fetched with before = %q, want %q", listing.befores[0], tt.stored)
			}
			if got := options.values[CursorOption]; got != tt.wantCursor {
				t.Errorf("stored cursor = %q, want %q", got, tt.wantCursor)
			}
			if result.Cursor != tt.wantCursor {
				t.Errorf("Result.Cursor = %q, want %q", result.Cursor, tt.wantCursor)
			}
		})
	}
}

func TestService_Run_CursorWriteFailureContinues(t *testing.T) {
	listing := &fakeListing{listing: listingOf(selfPost("t3_a"))}
	posts := newFakePosts()
	options := &fakeOptions{values: map[string]string{}, updateErr: errors.New("disk full")}

	result, err := newTestService(listing, posts, options, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", result.Inserted)
	}
	if result.Cursor != "" {
		t.Errorf("Cursor = %q, want unchanged empty cursor", result.Cursor)
	}
}

func TestService_Run_MalformedJSON(t *testing.T) {
	listing := &fakeListing{err: &reddit.JSONError{Kind: reddit.JSONErrorSyntax}}
	posts := newFakePosts()
	options := &fakeOptions{values: map[string]string{CursorOption: "t3_old"}}
	recorder := &fakeRecorder{}

	result, err := newTestService(listing, posts, options, recorder).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for malformed JSON", err)
	}

	if result.Fetched != 0 || result.Inserted != 0 {
		t.Errorf("Run() result = %+v, want empty", result)
	}
	if options.values[CursorOption] != "t3_old" {
		t.Errorf("cursor changed to %q", options.values[CursorOption])
	}
	if len(recorder.jsonErrors) != 1 || recorder.jsonErrors[0] != "syntax" {
		t.Errorf("recorded JSON errors = %v", recorder.jsonErrors)
	}
	if len(recorder.statuses) != 1 || recorder.statuses[0] != "json_error" {
		t.Errorf("recorded statuses = %v", recorder.statuses)
	}
}

func TestService_Run_FetchError(t *testing.T) {
	listing := &fakeListing{err: errors.New("connection refused")}
	recorder := &fakeRecorder{}

	_, err := newTestService(listing, newFakePosts(), &fakeOptions{values: map[string]string{}}, recorder).Run(context.Background())
	if err == nil {
		t.Fatal("Run() expected error")
	}
	if len(recorder.statuses) != 1 || recorder.statuses[0] != "fetch_error" {
		t.Errorf("recorded statuses = %v", recorder.statuses)
	}
}

func TestService_Run_RateLimited(t *testing.T) {
	httpErr := &api.HTTPError{StatusCode: http.StatusTooManyRequests, Status: "429 Too Many Requests", URL: "https://www.reddit.com/r/wordpress.json"}
	listing := &fakeListing{err: fmt.Errorf("failed to fetch listing: %w", httpErr)}
	options := &fakeOptions{values: map[string]string{CursorOption: "t3_old"}}
	recorder := &fakeRecorder{}

	_, err := newTestService(listing, newFakePosts(), options, recorder).Run(context.Background())
	if err == nil {
		t.Fatal("Run() expected error")
	}

	var got *api.HTTPError
	if !errors.As(err, &got) || !got.IsRateLimited() {
		t.Errorf("Run() error = %v, want a wrapped 429", err)
	}
	if len(recorder.statuses) != 1 || recorder.statuses[0] != "rate_limited" {
		t.Errorf("recorded statuses = %v", recorder.statuses)
	}
	if options.values[CursorOption] != "t3_old" {
		t.Errorf("cursor changed to %q", options.values[CursorOption])
	}
}

func TestService_Run_ServerErrorIsFetchError(t *testing.T) {
	listing := &fakeListing{err: &api.HTTPError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}}
	recorder := &fakeRecorder{}

	if _, err := newTestService(listing, newFakePosts(), &fakeOptions{values: map[string]string{}}, recorder).Run(context.Background()); err == nil {
		t.Fatal("Run() expected error")
	}
	if len(recorder.statuses) != 1 || recorder.statuses[0] != "fetch_error" {
		t.Errorf("recorded statuses = %v", recorder.statuses)
	}
}

func TestService_Run_StoreErrorsDoNotAbort(t *testing.T) {
	listing := &fakeListing{listing: listingOf(selfPost("t3_bad"), selfPost("t3_good"))}
	posts := newFakePosts()
	posts.insertErr["t3_bad"] = errors.New("disk I/O error")

	result, err := newTestService(listing, posts, &fakeOptions{values: map[string]string{}}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Failed != 1 || result.Inserted != 1 {
		t.Errorf("Run() result = %+v", result)
	}
}

func TestService_Run_PostFields(t *testing.T) {
	post := selfPost("t3_fields")
	post.Title = "<b>Help</b> with &amp; plugins"
	post.CreatedUTC = 1709287200.5

	listing := &fakeListing{listing: listingOf(post)}
	posts := newFakePosts()

	helsinki, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}

	svc := New(listing, posts, &fakeOptions{values: map[string]string{}},
		Options{SelfDomain: "self.wordpress", Location: helsinki}, nil, fixedClock())
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(posts.inserted) != 1 {
		t.Fatalf("inserted %d posts, want 1", len(posts.inserted))
	}
	got := posts.inserted[0]

	if got.Title != "Help with & plugins" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Content != "Body of t3_fields" || got.Status != "publish" || got.AuthorID != 1 {
		t.Errorf("post = %+v", got)
	}
	if got.PostDate != "2024-03-01 12:00:00" {
		t.Errorf("PostDate = %q, want Helsinki local time", got.PostDate)
	}

	want := map[string]string{
		MetaName:       "t3_fields",
		MetaURL:        "https://www.reddit.com/r/Wordpress/comments/t3_fields",
		MetaCreatedUTC: "1709287200.5",
		MetaUps:        "7",
		MetaAuthor:     "alice",
	}
	if len(got.Meta) != len(want) {
		t.Errorf("meta count = %d, want %d", len(got.Meta), len(want))
	}
	for key, value := range want {
		if v := metaValue(got, key); v != value {
			t.Errorf("meta %s = %q, want %q", key, v, value)
		}
	}
}

func TestPostDate(t *testing.T) {
	tests := []struct {
		name     string
		created  float64
		loc      *time.Location
		expected string
	}{
		{name: "utc", created: 0, loc: time.UTC, expected: "1970-01-01 00:00:00"},
		{name: "fraction dropped", created: 1709287200.9, loc: time.UTC, expected: "2024-03-01 10:00:00"},
		{name: "nil location", created: 1709287200, loc: nil, expected: "2024-03-01 10:00:00"},
		{name: "fixed offset", created: 1709287200, loc: time.FixedZone("X", -5*3600), expected: "2024-03-01 05:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PostDate(tt.created, tt.loc); got != tt.expected {
				t.Errorf("PostDate() = %q, want %q", got, tt.expected)
			}
		})
	}
}
