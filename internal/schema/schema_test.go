package schema

import (
	"strings"
	"testing"
	"time"
)

func TestMappingTranslatesFields(t *testing.T) {
	col, ok := Users.Column("crmState")
	if !ok || col.Name != "crm_state" {
		t.Fatalf("expected crm_state, got %+v", col)
	}
	if back, ok := Users.ByName("crm_state"); !ok || back.Field != "crmState" {
		t.Fatalf("reverse lookup failed: %+v", back)
	}
	if _, ok := Users.Column("senha"); ok {
		t.Fatal("unknown field must not resolve")
	}
	if Sharing.KeyColumn().Name != "id" || PersonalDataSet.KeyColumn().Name != "user_id" {
		t.Fatal("unexpected key columns")
	}
}

func TestToRowAndFromRow(t *testing.T) {
	hospital := "h1"
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	u := User{
		ID:         "u1",
		Email:      "ana@example.com",
		Profession: ProfessionDoctor,
		FullName:   "Ana",
		CRM:        "1234",
		CRMState:   "SP",
		HospitalID: &hospital,
		CreatedAt:  created,
	}

	row := Users.ToRow(&u)
	if row["full_name"] != "Ana" || row["hospital_id"] != "h1" {
		t.Fatalf("unexpected row: %+v", row)
	}

	row["extra_column"] = "ignored"
	back, err := Users.FromRow(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.FullName != "Ana" || back.HospitalID == nil || *back.HospitalID != "h1" || !back.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", back)
	}

	u.HospitalID = nil
	if Users.ToRow(&u)["hospital_id"] != nil {
		t.Fatal("nil pointer must map to NULL")
	}
}

func TestMatch(t *testing.T) {
	revoked := time.Now()
	active := SharedData{ID: "s1", PatientID: "p1", DoctorID: "d1", IsActive: true}
	inactive := SharedData{ID: "s2", PatientID: "p1", DoctorID: "d2", RevokedAt: &revoked}

	cases := []struct {
		name    string
		record  SharedData
		filters []Filter
		want    bool
	}{
		{"no filters", active, nil, true},
		{"bool match", active, []Filter{Eq("isActive", true)}, true},
		{"bool mismatch", inactive, []Filter{Eq("isActive", true)}, false},
		{"null filter matches null", active, []Filter{Eq("revokedAt", nil)}, true},
		{"null filter rejects value", inactive, []Filter{Eq("revokedAt", nil)}, false},
		{"conjunction", active, []Filter{Eq("patientId", "p1"), Eq("doctorId", "d2")}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sharing.Match(&tc.record, tc.filters)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMatchFoldAndUnknownField(t *testing.T) {
	u := User{Email: "Ana@Example.com"}
	ok, err := Users.Match(&u, []Filter{EqFold("email", "ana@example.COM")})
	if err != nil || !ok {
		t.Fatalf("expected case-insensitive match, got %v %v", ok, err)
	}
	ok, _ = Users.Match(&u, []Filter{Eq("email", "ana@example.com")})
	if ok {
		t.Fatal("exact filter must respect case")
	}
	if _, err := Users.Match(&u, []Filter{Eq("nope", "x")}); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestNewMappingRejectsInvalidDefinitions(t *testing.T) {
	expectPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	expectPanic("missing key", func() {
		NewMapping("x", "x", "name",
			strCol("name", "name", func(o *MetadataOption) *string { return &o.Name }),
		)
	})
	expectPanic("unknown order", func() {
		NewMapping("x", "x", "created_at",
			keyCol("id", "id", func(o *MetadataOption) *string { return &o.ID }),
		)
	})
	expectPanic("duplicate column", func() {
		NewMapping("x", "x", "id",
			keyCol("id", "id", func(o *MetadataOption) *string { return &o.ID }),
			strCol("name", "id", func(o *MetadataOption) *string { return &o.Name }),
		)
	})
}

func TestSetIDAndValues(t *testing.T) {
	var p Patient
	Patients.SetID(&p, "p9")
	if Patients.ID(&p) != "p9" {
		t.Fatalf("expected p9, got %q", Patients.ID(&p))
	}
	if len(Patients.Values(&p)) != len(Patients.ColumnNames()) {
		t.Fatal("values and columns must align")
	}
	if len(Patients.ScanTargets(&p)) != len(Patients.Columns()) {
		t.Fatal("scan targets and columns must align")
	}
}

func TestTaxonomyNames(t *testing.T) {
	if CategoryName("sinais_vitais") != "Sinais Vitais" {
		t.Fatal("unexpected category name")
	}
	if CategoryName("inexistente") != Unknown || UnitSymbol("") != Unknown {
		t.Fatal("unknown ids must resolve to the fallback name")
	}
	if !SubcategoryBelongs("glicemia", "exames_laboratoriais") || SubcategoryBelongs("glicemia", "habitos") {
		t.Fatal("unexpected subcategory membership")
	}
	if len(Subcategories("")) <= len(Subcategories("sinais_vitais")) {
		t.Fatal("empty category must list every subcategory")
	}
	units := Units()
	for i := 1; i < len(units); i++ {
		if units[i-1].Symbol > units[i].Symbol {
			t.Fatal("units must be sorted by symbol")
		}
	}
}

func TestStandardIndicatorsAreResolved(t *testing.T) {
	for _, ind := range StandardIndicators() {
		if !strings.HasPrefix(ind.ID, "padrao_") || !ind.IsStandard {
			t.Fatalf("unexpected standard indicator %+v", ind)
		}
		if ind.CategoryName == Unknown || ind.SubcategoryName == Unknown || ind.UnitSymbol == Unknown {
			t.Fatalf("indicator %s references ids outside the taxonomy", ind.ID)
		}
		if !SubcategoryBelongs(ind.SubcategoryID, ind.CategoryID) {
			t.Fatalf("indicator %s has mismatched subcategory", ind.ID)
		}
	}
}

func TestResolveNamesOptionalParts(t *testing.T) {
	ind := Indicator{CategoryID: "habitos"}
	ind.ResolveNames()
	if ind.SubcategoryName != "" || ind.UnitSymbol != "" {
		t.Fatalf("optional parts must stay empty, got %+v", ind)
	}
}

func TestCompareByOrderColumn(t *testing.T) {
	early := Patient{ID: "a", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	late := Patient{ID: "b", CreatedAt: early.CreatedAt.Add(time.Minute)}

	cases := []struct {
		name string
		a, b *Patient
		want int
	}{
		{"earlier first", &early, &late, -1},
		{"later last", &late, &early, 1},
		{"same instant", &early, &early, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Patients.Compare(tc.a, tc.b); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}

	if compareValues(nil, "x") != 1 || compareValues("x", nil) != -1 {
		t.Fatal("NULL must sort last")
	}
}
