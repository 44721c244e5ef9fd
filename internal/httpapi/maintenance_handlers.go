package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"arabia.app/internal/auth"
	"arabia.app/internal/maintenance"
)

const idPattern = "{id:[0-9]+}"

func (a *API) maintenanceRoutes(r *mux.Router) {
	b := r.PathPrefix("/businesses").Subrouter()
	b.HandleFunc("", a.listBusinesses).Methods(http.MethodGet)
	b.HandleFunc("/active", a.listActiveBusinesses).Methods(http.MethodGet)
	b.HandleFunc("/"+idPattern, a.getBusiness).Methods(http.MethodGet)
	b.Handle("", a.protect(auth.PolicyManager, a.createBusiness)).Methods(http.MethodPost)
	b.Handle("/"+idPattern, a.protect(auth.PolicyManager, a.updateBusiness)).Methods(http.MethodPut)
	b.Handle("/"+idPattern, a.protect(auth.PolicyManager, a.deleteBusiness)).Methods(http.MethodDelete)

	e := r.PathPrefix("/employees").Subrouter()
	e.Handle("", a.protect(auth.PolicyEmployee, a.listEmployees)).Methods(http.MethodGet)
	e.Handle("/"+idPattern, a.protect(auth.PolicyEmployee, a.getEmployee)).Methods(http.MethodGet)
	e.Handle("/specialization/{specialization}", a.protect(auth.PolicyEmployee, a.listEmployeesBySpecialization)).Methods(http.MethodGet)
	e.Handle("", a.protect(auth.PolicyManager, a.createEmployee)).Methods(http.MethodPost)
	e.Handle("/"+idPattern, a.protect(auth.PolicyManager, a.updateEmployee)).Methods(http.MethodPut)
	e.Handle("/"+idPattern, a.protect(auth.PolicyManager, a.deleteEmployee)).Methods(http.MethodDelete)

	s := r.PathPrefix("/services").Subrouter()
	s.HandleFunc("", a.listOfferings).Methods(http.MethodGet)
	s.HandleFunc("/active", a.listActiveOfferings).Methods(http.MethodGet)
	s.HandleFunc("/"+idPattern, a.getOffering).Methods(http.MethodGet)
	s.Handle("", a.protect(auth.PolicyManager, a.createOffering)).Methods(http.MethodPost)
	s.Handle("/"+idPattern, a.protect(auth.PolicyManager, a.updateOffering)).Methods(http.MethodPut)
	s.Handle("/"+idPattern, a.protect(auth.PolicyManager, a.deleteOffering)).Methods(http.MethodDelete)

	q := r.PathPrefix("/service-requests").Subrouter()
	q.HandleFunc("", a.createRequest).Methods(http.MethodPost)
	q.Handle("", a.protect(auth.PolicyUser, a.listRequests)).Methods(http.MethodGet)
	q.Handle("/"+idPattern, a.protect(auth.PolicyUser, a.getRequest)).Methods(http.MethodGet)
	q.Handle("/business/{businessId:[0-9]+}", a.protect(auth.PolicyUser, a.listRequestsByBusiness)).Methods(http.MethodGet)
	q.Handle("/employee/{employeeId:[0-9]+}", a.protect(auth.PolicyUser, a.listRequestsByEmployee)).Methods(http.MethodGet)
	q.Handle("/status/{status}", a.protect(auth.PolicyUser, a.listRequestsByStatus)).Methods(http.MethodGet)
	q.Handle("/"+idPattern, a.protect(auth.PolicyUser, a.updateRequest)).Methods(http.MethodPut)
	q.Handle("/"+idPattern, a.protect(auth.PolicyUser, a.deleteRequest)).Methods(http.MethodDelete)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// respond writes v or maps err.
func respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		handleMaintenanceError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func deleted(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		handleMaintenanceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- businesses ---

func (a *API) listBusinesses(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListBusinesses(r.Context(), false)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) listActiveBusinesses(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListBusinesses(r.Context(), true)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) getBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := a.catalog.GetBusiness(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) createBusiness(w http.ResponseWriter, r *http.Request) {
	var in maintenance.BusinessInput
	if err := decodeJSON(r, &in); err != nil {
		badBody(w, r, err)
		return
	}
	out, err := a.catalog.CreateBusiness(r.Context(), in)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) updateBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var upd maintenance.BusinessUpdate
	if err := decodeJSON(r, &upd); err != nil {
		badBody(w, r, err)
		return
	}
	out, err := a.catalog.UpdateBusiness(r.Context(), id, upd)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) deleteBusiness(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(w, r, "id"); ok {
		deleted(w, r, a.catalog.DeleteBusiness(r.Context(), id))
	}
}

// --- employees ---

func (a *API) listEmployees(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListEmployees(r.Context())
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) listEmployeesBySpecialization(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListEmployeesBySpecialization(r.Context(), mux.Vars(r)["specialization"])
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := a.catalog.GetEmployee(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) createEmployee(w http.ResponseWriter, r *http.Request) {
	var in maintenance.EmployeeInput
	if err := decodeJSON(r, &in); err != nil {
		badBody(w, r, err)
		return
	}
	out, err := a.catalog.CreateEmployee(r.Context(), in)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) updateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var upd maintenance.EmployeeUpdate
	if err := decodeJSON(r, &upd); err != nil {
		badBody(w, r, err)
		return
	}
	out, err := a.catalog.UpdateEmployee(r.Context(), id, upd)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(w, r, "id"); ok {
		deleted(w, r, a.catalog.DeleteEmployee(r.Context(), id))
	}
}

// --- catalog services ---

func (a *API) listOfferings(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListOfferings(r.Context(), false)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) listActiveOfferings(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListOfferings(r.Context(), true)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) getOffering(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := a.catalog.GetOffering(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) createOffering(w http.ResponseWriter, r *http.Request) {
	var in maintenance.OfferingInput
	if err := decodeJSON(r, &in); err != nil {
		badBody(w, r, err)
		return
	}
	out, err := a.catalog.CreateOffering(r.Context(), in)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) updateOffering(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var upd maintenance.OfferingUpdate
	if err := decodeJSON(r, &upd); err != nil {
		badBody(w, r, err)
		return
	}
	out, err := a.catalog.UpdateOffering(r.Context(), id, upd)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) deleteOffering(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(w, r, "id"); ok {
		deleted(w, r, a.catalog.DeleteOffering(r.Context(), id))
	}
}

// --- service requests ---

func (a *API) createRequest(w http.ResponseWriter, r *http.Request) {
	var in maintenance.RequestInput
	if err := decodeJSON(r, &in); err != nil {
		badBody(w, r, err)
		return
	}
	out, err := a.catalog.CreateRequest(r.Context(), in)
	respond(w, r, http.StatusCreated, out, err)
}

func (a *API) listRequests(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListRequests(r.Context())
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) getRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := a.catalog.GetRequest(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) listRequestsByBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "businessId")
	if !ok {
		return
	}
	out, err := a.catalog.ListRequestsByBusiness(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) listRequestsByEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "employeeId")
	if !ok {
		return
	}
	out, err := a.catalog.ListRequestsByEmployee(r.Context(), id)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) listRequestsByStatus(w http.ResponseWriter, r *http.Request) {
	out, err := a.catalog.ListRequestsByStatus(r.Context(), mux.Vars(r)["status"])
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) updateRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var upd maintenance.RequestUpdate
	if err := decodeJSON(r, &upd); err != nil {
		badBody(w, r, err)
		return
	}
	out, err := a.catalog.UpdateRequest(r.Context(), id, upd)
	respond(w, r, http.StatusOK, out, err)
}

func (a *API) deleteRequest(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(w, r, "id"); ok {
		deleted(w, r, a.catalog.DeleteRequest(r.Context(), id))
	}
}
