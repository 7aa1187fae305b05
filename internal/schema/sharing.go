package schema

import "time"

// SharedData registra o consentimento do paciente para um médico.
type SharedData struct {
	ID        string     `json:"id"`
	PatientID string     `json:"patientId"`
	DoctorID  string     `json:"doctorId"`
	SharedAt  time.Time  `json:"sharedAt"`
	IsActive  bool       `json:"isActive"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

var Sharing = NewMapping("sharing", "doctor_patient_sharing", "shared_at",
	keyCol("id", "id", func(s *SharedData) *string { return &s.ID }),
	strCol("patientId", "patient_id", func(s *SharedData) *string { return &s.PatientID }),
	strCol("doctorId", "doctor_id", func(s *SharedData) *string { return &s.DoctorID }),
	timeCol("sharedAt", "shared_at", func(s *SharedData) *time.Time { return &s.SharedAt }),
	boolCol("isActive", "is_active", func(s *SharedData) *bool { return &s.IsActive }),
	optTimeCol("revokedAt", "revoked_at", func(s *SharedData) **time.Time { return &s.RevokedAt }),
)
