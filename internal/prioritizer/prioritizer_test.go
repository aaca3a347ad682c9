package prioritizer

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func content(id string, t domain.ContentType, offset time.Duration) domain.Content {
	return domain.Content{ID: id, Type: t, Priority: PriorityFor(t), StartedAt: base.Add(offset)}
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, 100, PriorityFor(domain.ContentAlert))
	assert.Equal(t, 50, PriorityFor(domain.ContentSubTrain))
	assert.Equal(t, 50, PriorityFor(domain.ContentManualOverride))
	assert.Equal(t, 10, PriorityFor(domain.ContentTicker))
	assert.Equal(t, PriorityDefault, PriorityFor("confetti"))
}

func TestSortByPriority(t *testing.T) {
	ticker := content("t", domain.ContentTicker, 0)
	late := content("late", domain.ContentAlert, 2*time.Second)
	early := content("early", domain.ContentAlert, time.Second)
	train := content("train", domain.ContentSubTrain, 0)
	undated := domain.Content{ID: "undated", Type: domain.ContentAlert, Priority: PriorityAlert}

	in := []domain.Content{ticker, undated, late, train, early}
	out := SortByPriority(in)

	ids := make([]string, len(out))
	for i, c := range out {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"early", "late", "undated", "train", "t"}, ids)
	assert.Equal(t, "t", in[0].ID, "input must not be reordered")
}

func TestDetermineActive(t *testing.T) {
	rotation := []domain.ContentType{domain.ContentTicker, domain.ContentEmoteStats}

	t.Run("empty stack falls back to ticker", func(t *testing.T) {
		active := DetermineActive(nil, rotation)
		require.NotNil(t, active)
		assert.Equal(t, TickerID(domain.ContentTicker), active.ID)
		assert.Equal(t, PriorityTicker, active.Priority)
	})

	t.Run("empty stack and rotation", func(t *testing.T) {
		assert.Nil(t, DetermineActive(nil, nil))
	})

	t.Run("highest priority wins regardless of position", func(t *testing.T) {
		stack := []domain.Content{
			content("a", domain.ContentSubTrain, 0),
			content("b", domain.ContentAlert, time.Second),
		}
		active := DetermineActive(stack, rotation)
		require.NotNil(t, active)
		assert.Equal(t, "b", active.ID)
	})

	t.Run("invalid entries are ignored", func(t *testing.T) {
		stack := []domain.Content{{Type: domain.ContentAlert, Priority: PriorityAlert}, {ID: "x"}}
		active := DetermineActive(stack, rotation)
		require.NotNil(t, active)
		assert.Equal(t, TickerID(domain.ContentTicker), active.ID)
	})
}

func TestPriorityLevelOf(t *testing.T) {
	assert.Equal(t, domain.PriorityLevelTicker, PriorityLevelOf(nil))
	assert.Equal(t, domain.PriorityLevelSubTrain, PriorityLevelOf([]domain.Content{content("a", domain.ContentSubTrain, 0)}))
	assert.Equal(t, domain.PriorityLevelAlert, PriorityLevelOf([]domain.Content{
		content("a", domain.ContentSubTrain, 0),
		content("b", domain.ContentAlert, 0),
	}))
	assert.Equal(t, domain.PriorityLevelTicker, PriorityLevelOf([]domain.Content{content("c", domain.ContentCheer, 0)}))
}

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) Generate() (string, error) { return f.id, f.err }

func TestCreator(t *testing.T) {
	c := NewCreator(fixedIDs{id: "gen-1"}, func() time.Time { return base })

	got, err := c.Create(domain.ContentAlert, map[string]any{"user": "kim"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "gen-1", got.ID)
	assert.Equal(t, PriorityAlert, got.Priority)
	assert.Equal(t, base, got.StartedAt)
	assert.Equal(t, int64(10000), got.Duration)

	zero := time.Duration(0)
	got, err = c.Create(domain.ContentAlert, nil, Options{ID: "mine", Duration: &zero})
	require.NoError(t, err)
	assert.Equal(t, "mine", got.ID)
	assert.Zero(t, got.Duration)

	_, err = c.Create("", nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyContentType)

	neg := -time.Second
	_, err = c.Create(domain.ContentAlert, nil, Options{Duration: &neg})
	assert.ErrorIs(t, err, ErrNegativeDuration)

	boom := errors.New("boom")
	_, err = NewCreator(fixedIDs{err: boom}, nil).Create(domain.ContentAlert, nil, Options{})
	assert.ErrorIs(t, err, boom)
}

func genContent() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.OneConstOf(domain.ContentAlert, domain.ContentSubTrain, domain.ContentTicker, domain.ContentRaid),
		gen.IntRange(0, 120),
	).Map(func(v []interface{}) domain.Content {
		return content(v[0].(string), v[1].(domain.ContentType), time.Duration(v[2].(int))*time.Second)
	})
}

func TestProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sorted output is ordered and a permutation", prop.ForAll(
		func(list []domain.Content) bool {
			out := SortByPriority(list)
			if len(out) != len(list) {
				return false
			}
			for i := 1; i < len(out); i++ {
				if Less(out[i], out[i-1]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genContent()),
	))

	properties.Property("active content is the first sorted entry", prop.ForAll(
		func(list []domain.Content) bool {
			active := DetermineActive(list, nil)
			if len(list) == 0 {
				return active == nil
			}
			top := SortByPriority(list)[0]
			return active != nil && active.Priority == top.Priority && active.StartedAt.Equal(top.StartedAt)
		},
		gen.SliceOf(genContent()),
	))

	properties.Property("stack order does not change the winner's rank", prop.ForAll(
		func(list []domain.Content) bool {
			if len(list) == 0 {
				return true
			}
			reversed := make([]domain.Content, len(list))
			for i, c := range list {
				reversed[len(list)-1-i] = c
			}
			a := DetermineActive(list, nil)
			b := DetermineActive(reversed, nil)
			return a.Priority == b.Priority && a.StartedAt.Equal(b.StartedAt)
		},
		gen.SliceOf(genContent()),
	))

	properties.TestingRun(t)
}
