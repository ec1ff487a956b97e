package server

import (
	"net/http"

	"patientledger/core/errs"
	"patientledger/core/ledger"
	"patientledger/core/record"
)

type createPatientRequest struct {
	PatientID   string `json:"patientId,omitempty"`
	Name        string `json:"name"`
	DateOfBirth string `json:"dateOfBirth"`
	ContactInfo string `json:"contactInfo"`
}

type consentRequest struct {
	PatientID    string `json:"patientId,omitempty"`
	ProviderID   string `json:"providerId,omitempty"`
	ConsentGiven *bool  `json:"consentGiven"`
}

type createdResponse struct {
	PatientID string         `json:"patientId,omitempty"`
	ConsentID string         `json:"consentId,omitempty"`
	Receipt   ledger.Receipt `json:"receipt"`
}

type receiptResponse struct {
	Receipt ledger.Receipt `json:"receipt"`
}

type historyResponse struct {
	Entries []ledger.Entry `json:"entries"`
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req createPatientRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	data := record.PatientData{Name: req.Name, DateOfBirth: req.DateOfBirth, ContactInfo: req.ContactInfo}
	actor := IdentityFrom(r.Context())

	var (
		ack record.Ack
		err error
	)
	if req.PatientID != "" {
		ack, err = s.svc.Patients.CreateWithID(r.Context(), actor, req.PatientID, data)
	} else {
		ack, err = s.svc.CreatePatient(r.Context(), actor, data)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{PatientID: ack.ID, Receipt: ack.Receipt})
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetPatient(r.Context(), IdentityFrom(r.Context()), r.PathValue("patientId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var data record.PatientData
	if err := decode(r, &data); err != nil {
		s.writeError(w, r, err)
		return
	}
	rcpt, err := s.svc.UpdatePatient(r.Context(), IdentityFrom(r.Context()), r.PathValue("patientId"), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	rcpt, err := s.svc.DeletePatient(r.Context(), IdentityFrom(r.Context()), r.PathValue("patientId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

func (s *Server) handleCreateConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ConsentGiven == nil {
		s.writeError(w, r, errs.Newf(errs.KindInvalidArgument, "http.consent", "", "consentGiven is required"))
		return
	}
	ack, err := s.svc.CreateConsent(r.Context(), IdentityFrom(r.Context()), req.PatientID, req.ProviderID, *req.ConsentGiven)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ConsentID: ack.ID, Receipt: ack.Receipt})
}

func (s *Server) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetConsent(r.Context(), IdentityFrom(r.Context()), r.PathValue("patientId"), r.PathValue("providerId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patientID, providerID := r.PathValue("patientId"), r.PathValue("providerId")
	// identifiers come from the path; a body naming different ones is refused
	if (req.PatientID != "" && req.PatientID != patientID) || (req.ProviderID != "" && req.ProviderID != providerID) {
		s.writeError(w, r, errs.Newf(errs.KindInvalidArgument, "http.consent", "", "body identifiers do not match path"))
		return
	}
	if req.ConsentGiven == nil {
		s.writeError(w, r, errs.Newf(errs.KindInvalidArgument, "http.consent", "", "consentGiven is required"))
		return
	}
	rcpt, err := s.svc.UpdateConsent(r.Context(), IdentityFrom(r.Context()), patientID, providerID, *req.ConsentGiven)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

func (s *Server) handleDeleteConsent(w http.ResponseWriter, r *http.Request) {
	rcpt, err := s.svc.DeleteConsent(r.Context(), IdentityFrom(r.Context()), r.PathValue("patientId"), r.PathValue("providerId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

func (s *Server) handlePatientHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.PatientHistory(r.Context(), r.PathValue("patientId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Entries: entries})
}

func (s *Server) handleConsentHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.ConsentHistory(r.Context(), r.PathValue("patientId"), r.PathValue("providerId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Entries: entries})
}
