package seed

import (
	"fmt"
	"math/rand"
	"strings"

	"patronage/internal/ledger"
	"patronage/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds demo users and posts. It is deterministic for a given seed so
// tests can assert on its output.
type Factory struct {
	faker *gofakeit.Faker
	rng   *rand.Rand
	opts  Options
}

// NewFactory creates a Factory. A zero opts.RandomSeed picks a fixed seed of 1.
func NewFactory(opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = 1
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{
		faker: gofakeit.New(seed),
		rng:   rand.New(rand.NewSource(seed)),
		opts:  opts,
	}
}

// BuildUser returns an unsaved supporter/author. The index keeps usernames unique.
func (f *Factory) BuildUser(i int) *models.User {
	first := f.faker.FirstName()
	username := fmt.Sprintf("%s%d", strings.ToLower(first), i)

	user := &models.User{
		Username:    username,
		DisplayName: first + " " + f.faker.LastName(),
		Bio:         f.faker.Sentence(8),
		Avatar:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
	}
	if len(user.DisplayName) > 50 {
		user.DisplayName = user.DisplayName[:50]
	}
	if f.rng.Float64() < f.opts.AnonymousRatio {
		user.IsAnonymous = true
	}
	return user
}

// BuildPost returns an unsaved artwork post for author.
func (f *Factory) BuildPost(author *models.User) *models.Post {
	title := f.faker.HipsterSentence(4)
	return &models.Post{
		Title:       strings.TrimSuffix(title, "."),
		Description: f.faker.Paragraph(1, 2, 8, "\n"),
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID()),
		UserID:      author.ID,
	}
}

// PickAmount draws a donation amount. Smaller denominations are more common.
func (f *Factory) PickAmount() int64 {
	denoms := ledger.Denominations()
	switch n := f.rng.Intn(10); {
	case n < 6:
		return denoms[0]
	case n < 9:
		return denoms[1]
	default:
		return denoms[2]
	}
}

// Intn exposes the factory's generator so selections stay reproducible.
func (f *Factory) Intn(n int) int {
	return f.rng.Intn(n)
}
