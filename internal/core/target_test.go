package core

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRecordType_DuplicateFieldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate field")
		}
	}()
	NewRecordType[scoreRow]("Dup",
		StringField("name", func(r *scoreRow, v string) {}),
		StringField("name", func(r *scoreRow, v string) {}),
	)
}

func TestRecordType_Field(t *testing.T) {
	f, ok := scoreType.Field("score")
	if !ok || f.Type != FieldInt64 {
		t.Fatalf("Field(score) = %+v, %v", f, ok)
	}
	if _, ok := scoreType.Field("Score"); ok {
		t.Error("field lookup should be case-sensitive")
	}
}

func TestEnumField_Set(t *testing.T) {
	f, _ := gearType.Field("Rarity")
	g := &gear{}
	v, ok := Coerce("epic", f)
	if !ok {
		t.Fatal("expected enum match")
	}
	f.Set(g, v)
	if g.Rarity != rarityEpic {
		t.Errorf("Rarity = %v, want Epic", g.Rarity)
	}
}

func TestTarget_Validate(t *testing.T) {
	var (
		rows   []scoreRow
		single scoreRow
		wrong  []valueRow
	)

	badField := NewRecordType[scoreRow]("Bad",
		FieldSpec{Name: "blob", Type: FieldUnsupported, Set: func(any, any) {}},
	)
	emptyEnum := NewRecordType[scoreRow]("NoValues",
		FieldSpec{Name: "kind", Type: FieldEnum, Set: func(any, any) {}},
	)

	tests := []struct {
		name    string
		target  Target
		wantErr error
		wantMsg string
	}{
		{"list ok", ListTarget("Scores", "Scores", scoreType, &rows), nil, ""},
		{"array ok", ArrayTarget("Scores", "Scores", scoreType, &rows), nil, ""},
		{"single ok", SingleTarget("Top", "Top", scoreType, &single), nil, ""},
		{"abstract element", ListTarget("Bases", "Bases", baseType, &rows), ErrUnsupportedTarget, "Bases"},
		{"nil record type", ListTarget("Nothing", "Nothing", nil, &rows), ErrUnsupportedTarget, "Nothing"},
		{"element mismatch", ListTarget("Values", "Values", scoreType, &wrong), ErrUnsupportedTarget, "Values"},
		{"empty page", ListTarget("Scores", " ", scoreType, &rows), ErrUnsupportedTarget, "Scores"},
		{"unknown kind", Target{Field: "Raw", Page: "Raw", Kind: ContainerKind(9), Record: scoreType}, ErrUnsupportedTarget, "Raw"},
		{"hand built", Target{Field: "Raw", Page: "Raw", Kind: KindList, Record: scoreType}, ErrUnsupportedTarget, "Raw"},
		{"unsupported field", ListTarget("Bad", "Bad", badField, &rows), ErrUnsupportedField, "blob"},
		{"enum without values", ListTarget("Kinds", "Kinds", emptyEnum, &rows), ErrUnsupportedField, "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
			var te *TargetError
			if !errors.As(err, &te) {
				t.Fatalf("Validate() error is %T, want *TargetError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestTarget_Assign(t *testing.T) {
	records := []any{&scoreRow{ID: 1}, &scoreRow{ID: 2}}

	t.Run("list replaces contents", func(t *testing.T) {
		dst := []scoreRow{{ID: 99}}
		if err := ListTarget("S", "S", scoreType, &dst).assign(records); err != nil {
			t.Fatal(err)
		}
		if len(dst) != 2 || dst[0].ID != 1 || dst[1].ID != 2 {
			t.Errorf("dst = %+v", dst)
		}
	})

	t.Run("array has exact length", func(t *testing.T) {
		var dst []scoreRow
		if err := ArrayTarget("S", "S", scoreType, &dst).assign(records); err != nil {
			t.Fatal(err)
		}
		if len(dst) != 2 || cap(dst) != 2 {
			t.Errorf("len=%d cap=%d, want 2/2", len(dst), cap(dst))
		}
	})

	t.Run("array of zero rows is empty not nil", func(t *testing.T) {
		var dst []scoreRow
		if err := ArrayTarget("S", "S", scoreType, &dst).assign(nil); err != nil {
			t.Fatal(err)
		}
		if dst == nil || len(dst) != 0 {
			t.Errorf("dst = %#v, want empty slice", dst)
		}
	})

	t.Run("single takes first", func(t *testing.T) {
		var dst scoreRow
		if err := SingleTarget("S", "S", scoreType, &dst).assign(records); err != nil {
			t.Fatal(err)
		}
		if dst.ID != 1 {
			t.Errorf("ID = %d, want 1", dst.ID)
		}
	})

	t.Run("single without rows fails", func(t *testing.T) {
		dst := scoreRow{ID: 5}
		err := SingleTarget("S", "S", scoreType, &dst).assign(nil)
		if !errors.Is(err, ErrEmptyPage) {
			t.Fatalf("assign() = %v, want ErrEmptyPage", err)
		}
		if dst.ID != 5 {
			t.Error("destination changed on failure")
		}
	})
}
