package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResidentApplyIgnoresProtectedKeys(t *testing.T) {
	r := &Resident{NIK: "3201010101010001", Alamat: "Jl. Lama", RT: "001"}
	changes := FieldChanges{"alamat": "Jl. Baru", "rt": "002", "nik": "9999999999999999"}

	before := r.Current(changes)
	r.Apply(changes)

	assert.Equal(t, "Jl. Baru", r.Alamat)
	assert.Equal(t, "002", r.RT)
	assert.Equal(t, "3201010101010001", r.NIK)
	assert.Equal(t, FieldChanges{"alamat": "Jl. Lama", "rt": "001"}, before)
}

func TestIsEditableField(t *testing.T) {
	assert.True(t, IsEditableField("kode_pos"))
	assert.False(t, IsEditableField("nik"))
	assert.False(t, IsEditableField("nama_lengkap"))
}

func TestResidentAge(t *testing.T) {
	r := &Resident{TanggalLahir: time.Date(2000, 10, 20, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 25, r.Age(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 26, r.Age(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)))
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, 3, NewPagination(2, 10, 21).TotalPages)
	assert.Equal(t, 0, NewPagination(1, 0, 5).TotalPages)
}
