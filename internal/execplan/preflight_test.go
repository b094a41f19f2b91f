// Copyright 2026 fanjia1024
// Tests for the preflight checker

package execplan

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreflightChecker_PassesWithNoTemplatesOrNetwork(t *testing.T) {
	dir := t.TempDir()
	c := NewPreflightChecker(dir, 1, nil, nil, nil)
	plan := &BusinessPlan{PlanID: "plan_1", Steps: []*ExecutionStep{{StepID: "s1", ExecutorType: "webgen"}}}

	result, err := c.CheckPrerequisites(context.Background(), plan)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Errors)
}

func TestPreflightChecker_MissingTemplateIsBlockingError(t *testing.T) {
	dir := t.TempDir()
	loader := func(templateID string) ([]byte, error) {
		return nil, errors.New("not found")
	}
	c := NewPreflightChecker(dir, 1, loader, nil, nil)
	plan := &BusinessPlan{PlanID: "plan_1", Steps: []*ExecutionStep{{StepID: "s1", ExecutorType: "webgen", TemplateID: "tpl_missing"}}}

	result, err := c.CheckPrerequisites(context.Background(), plan)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
}

func TestPreflightChecker_NetworkFailureIsWarningNotError(t *testing.T) {
	dir := t.TempDir()
	checkNet := func(ctx context.Context) error { return errors.New("unreachable") }
	c := NewPreflightChecker(dir, 1, nil, checkNet, []string{"dns"})
	plan := &BusinessPlan{PlanID: "plan_1", Steps: []*ExecutionStep{{StepID: "s1", ExecutorType: "dns"}}}

	result, err := c.CheckPrerequisites(context.Background(), plan)
	require.NoError(t, err)
	assert.True(t, result.Passed) // network is a warning, not a blocking error
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
}

func TestPreflightChecker_WritesAndCleansUpProbeFile(t *testing.T) {
	dir := t.TempDir()
	c := NewPreflightChecker(dir, 1, nil, nil, nil)
	plan := &BusinessPlan{PlanID: "plan_1", Steps: []*ExecutionStep{{StepID: "s1", ExecutorType: "webgen"}}}

	result, err := c.CheckPrerequisites(context.Background(), plan)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	_, statErr := os.Stat(dir + "/.write_test")
	assert.True(t, os.IsNotExist(statErr))
}
