package engine

import (
	"math"
	"testing"
)

func createTestRules() Rules {
	return Rules{
		SpawnExtent:    50,
		MaxHealth:      100,
		DefaultWeapons: []string{"pistol"},
	}
}

func TestNewEngine(t *testing.T) {
	eng, err := NewEngine(createTestRules())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if eng.MaxHealth() != 100 {
		t.Errorf("Expected max health 100, got %d", eng.MaxHealth())
	}

	weapons := eng.DefaultWeapons()
	if len(weapons) != 1 || weapons[0] != "pistol" {
		t.Errorf("Expected [pistol], got %v", weapons)
	}
}

func TestNewEngine_InvalidRules(t *testing.T) {
	tests := []struct {
		name  string
		rules Rules
	}{
		{"zero extent", Rules{SpawnExtent: 0, MaxHealth: 100, DefaultWeapons: []string{"pistol"}}},
		{"nan extent", Rules{SpawnExtent: math.NaN(), MaxHealth: 100, DefaultWeapons: []string{"pistol"}}},
		{"zero health", Rules{SpawnExtent: 50, MaxHealth: 0, DefaultWeapons: []string{"pistol"}}},
		{"no weapons", Rules{SpawnExtent: 50, MaxHealth: 100}},
		{"blank weapon", Rules{SpawnExtent: 50, MaxHealth: 100, DefaultWeapons: []string{" "}}},
		{"infinite ground", Rules{SpawnExtent: 50, MaxHealth: 100, DefaultWeapons: []string{"pistol"}, GroundLevel: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.rules); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestEngine_DefaultWeaponsIsCopy(t *testing.T) {
	eng := NewEngineWithDefaults()

	weapons := eng.DefaultWeapons()
	weapons[0] = "rocket"

	if eng.DefaultWeapons()[0] != DefaultWeapon {
		t.Error("Mutating returned weapons should not change the engine")
	}

	rules := eng.Rules()
	rules.DefaultWeapons[0] = "rocket"
	if eng.Rules().DefaultWeapons[0] != DefaultWeapon {
		t.Error("Mutating returned rules should not change the engine")
	}
}

func TestEngine_SpawnPosition(t *testing.T) {
	eng, err := NewEngineWithSeed(createTestRules(), 42)
	if err != nil {
		t.Fatalf("NewEngineWithSeed failed: %v", err)
	}

	sawNegative, sawPositive := false, false
	for i := 0; i < 1000; i++ {
		p := eng.SpawnPosition()
		if !eng.InSpawnArea(p) {
			t.Fatalf("Spawn position %+v outside spawn area", p)
		}
		if p.Y != 0 {
			t.Fatalf("Expected spawn on ground, got y=%v", p.Y)
		}
		if p.X < 0 {
			sawNegative = true
		}
		if p.X > 0 {
			sawPositive = true
		}
	}

	if !sawNegative || !sawPositive {
		t.Error("Expected spawn positions on both sides of the origin")
	}
}

func TestEngine_SpawnPositionDeterministic(t *testing.T) {
	a, _ := NewEngineWithSeed(createTestRules(), 7)
	b, _ := NewEngineWithSeed(createTestRules(), 7)

	for i := 0; i < 10; i++ {
		if pa, pb := a.SpawnPosition(), b.SpawnPosition(); pa != pb {
			t.Fatalf("Same seed produced different spawns: %+v vs %+v", pa, pb)
		}
	}
}

func TestEngine_SpawnUsesGroundLevel(t *testing.T) {
	rules := createTestRules()
	rules.GroundLevel = 2.5
	eng, err := NewEngine(rules)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if p := eng.SpawnPosition(); p.Y != 2.5 {
		t.Errorf("Expected y=2.5, got %v", p.Y)
	}
}

func TestVector_IsFinite(t *testing.T) {
	if !(Vector{X: 1, Y: 2, Z: 3}).IsFinite() {
		t.Error("Expected finite vector")
	}
	if (Vector{X: math.NaN()}).IsFinite() {
		t.Error("NaN component should not be finite")
	}
	if (Rotation{Y: math.Inf(-1)}).IsFinite() {
		t.Error("Infinite yaw should not be finite")
	}
}
