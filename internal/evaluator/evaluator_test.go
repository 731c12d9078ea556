package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniform(t *testing.T) {
	got, err := Uniform{}.Evaluate(context.Background(), Request{IonCount: 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"DD": 0.25, "DS": 0.25, "SD": 0.25, "SS": 0.25}, got)

	_, err = Uniform{}.Evaluate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoIons)

	_, err = Uniform{}.Evaluate(context.Background(), Request{IonCount: maxUniformIons + 1})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Uniform{}.Evaluate(ctx, Request{IonCount: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFunc(t *testing.T) {
	boom := errors.New("boom")
	var seen Request
	f := Func(func(_ context.Context, req Request) (map[string]float64, error) {
		seen = req
		return nil, boom
	})
	var ev Evaluator = f
	_, err := ev.Evaluate(context.Background(), Request{IonCount: 3, FieldGauss: 4})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, seen.IonCount)
	assert.Equal(t, 4.0, seen.FieldGauss)
}
