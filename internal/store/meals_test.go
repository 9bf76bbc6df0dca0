package store

import (
	"context"
	"testing"

	"github.com/roach88/shrimpzone/internal/api"
)

func TestPutMeals_ReadBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createTestMeal("meal-a", "Garlic Shrimp", "5.00", "cat-1")
	a.Images = []string{"https://img.example/a.jpg"}
	a.Description = "Buttery"
	meals := []api.Meal{a, createTestMeal("meal-b", "Cajun Fries", "3.50", "cat-2")}
	if err := s.PutMeals(ctx, meals, testEpoch); err != nil {
		t.Fatalf("PutMeals() failed: %v", err)
	}

	got, ok, err := s.Meal(ctx, "meal-a")
	if err != nil {
		t.Fatalf("Meal() failed: %v", err)
	}
	if !ok {
		t.Fatal("Meal() ok = false, want true")
	}
	if got.Name != "Garlic Shrimp" || got.Description != "Buttery" || got.Category != "cat-1" {
		t.Errorf("Meal() = %+v", got)
	}
	if got.Price.String() != "5.00" {
		t.Errorf("Price = %s, want 5.00", got.Price)
	}
	if len(got.Images) != 1 || got.Images[0] != "https://img.example/a.jpg" {
		t.Errorf("Images = %v", got.Images)
	}
}

func TestMeal_Missing(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.Meal(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Meal() failed: %v", err)
	}
	if ok {
		t.Error("Meal() ok = true for uncached meal")
	}
}

func TestPutMeals_Upserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.PutMeals(ctx, []api.Meal{createTestMeal("meal-a", "Garlic Shrimp", "5.00", "cat-1")}, testEpoch); err != nil {
		t.Fatalf("PutMeals() failed: %v", err)
	}
	if err := s.PutMeals(ctx, []api.Meal{createTestMeal("meal-a", "Garlic Shrimp", "5.50", "cat-1")}, testEpoch); err != nil {
		t.Fatalf("second PutMeals() failed: %v", err)
	}

	got, _, err := s.Meal(ctx, "meal-a")
	if err != nil {
		t.Fatalf("Meal() failed: %v", err)
	}
	if got.Price.String() != "5.50" {
		t.Errorf("Price = %s, want 5.50 after upsert", got.Price)
	}
}

func TestPutMeals_RejectsMissingIDAtomically(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	meals := []api.Meal{
		createTestMeal("meal-a", "Garlic Shrimp", "5.00", "cat-1"),
		createTestMeal("", "Mystery", "1.00", "cat-1"),
	}
	if err := s.PutMeals(ctx, meals, testEpoch); err == nil {
		t.Fatal("PutMeals() with empty id should fail")
	}

	all, err := s.Meals(ctx)
	if err != nil {
		t.Fatalf("Meals() failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("partial write survived rollback: %v", all)
	}
}

func TestMeals_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	meals := []api.Meal{
		createTestMeal("meal-c", "Shrimp Tacos", "12.25", "cat-1"),
		createTestMeal("meal-b", "Cajun Fries", "3.50", "cat-2"),
		createTestMeal("meal-a", "Garlic Shrimp", "5.00", "cat-1"),
	}
	if err := s.PutMeals(ctx, meals, testEpoch); err != nil {
		t.Fatalf("PutMeals() failed: %v", err)
	}

	all, err := s.Meals(ctx)
	if err != nil {
		t.Fatalf("Meals() failed: %v", err)
	}

	var ids []string
	for _, m := range all {
		ids = append(ids, m.ID)
	}
	want := []string{"meal-a", "meal-c", "meal-b"}
	if len(ids) != len(want) {
		t.Fatalf("Meals() ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Meals()[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestMeals_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	all, err := s.Meals(context.Background())
	if err != nil {
		t.Fatalf("Meals() failed: %v", err)
	}
	if all == nil {
		t.Error("Meals() returned nil, want empty slice")
	}
}
