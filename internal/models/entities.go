// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

// Package models defines the registry entities and the API response
// envelope shared by all HTTP endpoints.
package models

import (
	"strings"
	"time"

	"github.com/medchain-io/medchain/internal/store"
)

// Collection names in the document store.
const (
	CollectionInstitutions = "institutions"
	CollectionDoctors      = "doctors"
	CollectionPatients     = "patients"
)

// NormalizeWallet lowercases a wallet address. All storage and lookups use
// the lowercased form so the natural key is case-insensitive.
func NormalizeWallet(addr string) string {
	return strings.ToLower(addr)
}

// Institution is a registered healthcare institution. The wallet address is
// the natural key across all three registries.
type Institution struct {
	ID            string    `json:"id"`
	Name          string    `json:"name" validate:"required,min=2,max=200"`
	WalletAddress string    `json:"wallet_address" validate:"required,wallet_address"`
	LicenseNumber string    `json:"license_number" validate:"required,min=1,max=100"`
	Address       string    `json:"address" validate:"required,min=1,max=500"`
	Phone         string    `json:"phone" validate:"required,min=5,max=30"`
	Email         string    `json:"email" validate:"required,email"`
	CreatedAt     time.Time `json:"created_at"`
}

// Document returns the store representation of the institution.
func (i *Institution) Document() store.Document {
	return store.Document{
		"id":             i.ID,
		"name":           i.Name,
		"wallet_address": NormalizeWallet(i.WalletAddress),
		"license_number": i.LicenseNumber,
		"address":        i.Address,
		"phone":          i.Phone,
		"email":          i.Email,
		"created_at":     i.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Doctor is a practitioner registered under an institution.
type Doctor struct {
	ID             string    `json:"id"`
	InstitutionID  string    `json:"institution_id" validate:"required,uuid4"`
	Name           string    `json:"name" validate:"required,min=2,max=200"`
	WalletAddress  string    `json:"wallet_address" validate:"required,wallet_address"`
	Specialization string    `json:"specialization" validate:"required,min=1,max=100"`
	LicenseNumber  string    `json:"license_number" validate:"required,min=1,max=100"`
	Email          string    `json:"email" validate:"required,email"`
	Phone          string    `json:"phone" validate:"required,min=5,max=30"`
	CreatedAt      time.Time `json:"created_at"`
}

// Document returns the store representation of the doctor.
func (d *Doctor) Document() store.Document {
	return store.Document{
		"id":             d.ID,
		"institution_id": d.InstitutionID,
		"name":           d.Name,
		"wallet_address": NormalizeWallet(d.WalletAddress),
		"specialization": d.Specialization,
		"license_number": d.LicenseNumber,
		"email":          d.Email,
		"phone":          d.Phone,
		"created_at":     d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Patient is a registered patient.
type Patient struct {
	ID               string    `json:"id"`
	Name             string    `json:"name" validate:"required,min=2,max=200"`
	WalletAddress    string    `json:"wallet_address" validate:"required,wallet_address"`
	DateOfBirth      string    `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender           string    `json:"gender" validate:"required,oneof=male female other"`
	BloodGroup       string    `json:"blood_group" validate:"required,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Phone            string    `json:"phone" validate:"required,min=5,max=30"`
	Email            string    `json:"email" validate:"required,email"`
	EmergencyContact string    `json:"emergency_contact" validate:"required,min=5,max=200"`
	CreatedAt        time.Time `json:"created_at"`
}

// Document returns the store representation of the patient.
func (p *Patient) Document() store.Document {
	return store.Document{
		"id":                p.ID,
		"name":              p.Name,
		"wallet_address":    NormalizeWallet(p.WalletAddress),
		"date_of_birth":     p.DateOfBirth,
		"gender":            p.Gender,
		"blood_group":       p.BloodGroup,
		"phone":             p.Phone,
		"email":             p.Email,
		"emergency_contact": p.EmergencyContact,
		"created_at":        p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
