// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package models

import (
	"testing"
	"time"

	"github.com/medchain-io/medchain/internal/validation"
)

func validPatient() Patient {
	return Patient{
		ID:               "6f1c2b6e-9c1a-4c2b-8f3d-2a1b0c9d8e7f",
		Name:             "Jordan Mensah",
		WalletAddress:    "0x52908400098527886E0F7030069857D2E4169EE7",
		DateOfBirth:      "1988-04-12",
		Gender:           "male",
		BloodGroup:       "O+",
		Phone:            "+233201234567",
		Email:            "jordan@example.com",
		EmergencyContact: "Ama Mensah +233209876543",
		CreatedAt:        time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestPatientValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Patient)
		valid  bool
	}{
		{"valid", func(p *Patient) {}, true},
		{"bad wallet", func(p *Patient) { p.WalletAddress = "0x123" }, false},
		{"bad dob format", func(p *Patient) { p.DateOfBirth = "12/04/1988" }, false},
		{"bad gender", func(p *Patient) { p.Gender = "unspecified" }, false},
		{"bad blood group", func(p *Patient) { p.BloodGroup = "C+" }, false},
		{"missing name", func(p *Patient) { p.Name = "" }, false},
		{"bad email", func(p *Patient) { p.Email = "nope" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPatient()
			tt.mutate(&p)
			err := validation.ValidateStruct(&p)
			if tt.valid && err != nil {
				t.Errorf("ValidateStruct() = %v, want nil", err)
			}
			if !tt.valid && err == nil {
				t.Error("ValidateStruct() = nil, want error")
			}
		})
	}
}

func TestDoctorValidationRequiresInstitutionUUID(t *testing.T) {
	d := Doctor{
		InstitutionID:  "not-a-uuid",
		Name:           "Dr. Osei",
		WalletAddress:  "0x52908400098527886e0f7030069857d2e4169ee7",
		Specialization: "Cardiology",
		LicenseNumber:  "MD-4471",
		Email:          "osei@example.com",
		Phone:          "+233501112223",
	}
	if err := validation.ValidateStruct(&d); err == nil {
		t.Error("ValidateStruct() = nil for malformed institution_id")
	}

	d.InstitutionID = "a3bb189e-8bf9-4888-9912-ace4e6543002"
	if err := validation.ValidateStruct(&d); err != nil {
		t.Errorf("ValidateStruct() = %v for valid doctor, want nil", err)
	}
}

func TestDocumentNormalizesWallet(t *testing.T) {
	p := validPatient()
	doc := p.Document()

	if got := doc["wallet_address"]; got != "0x52908400098527886e0f7030069857d2e4169ee7" {
		t.Errorf("wallet_address = %v, want lowercased form", got)
	}
	if got := doc["created_at"]; got != "2026-08-20T10:00:00Z" {
		t.Errorf("created_at = %v, want RFC3339 UTC", got)
	}
}

func TestNormalizeWallet(t *testing.T) {
	if got := NormalizeWallet("0xABCdef"); got != "0xabcdef" {
		t.Errorf("NormalizeWallet() = %q", got)
	}
}
