package models

import (
	"time"
)

// Gender values accepted for jenis_kelamin.
const (
	GenderMale   = "Laki-laki"
	GenderFemale = "Perempuan"
)

// Resident is a registered citizen stored in the warga table.
type Resident struct {
	ID               string    `db:"id" json:"id"`
	NIK              string    `db:"nik" json:"nik"`
	NamaLengkap      string    `db:"nama_lengkap" json:"nama_lengkap"`
	JenisKelamin     string    `db:"jenis_kelamin" json:"jenis_kelamin"`
	TempatLahir      string    `db:"tempat_lahir" json:"tempat_lahir"`
	TanggalLahir     time.Time `db:"tanggal_lahir" json:"tanggal_lahir"`
	Agama            string    `db:"agama" json:"agama"`
	Pendidikan       string    `db:"pendidikan" json:"pendidikan"`
	Pekerjaan        string    `db:"pekerjaan" json:"pekerjaan"`
	StatusPerkawinan string    `db:"status_perkawinan" json:"status_perkawinan"`
	Alamat           string    `db:"alamat" json:"alamat"`
	RT               string    `db:"rt" json:"rt"`
	RW               string    `db:"rw" json:"rw"`
	Kelurahan        string    `db:"kelurahan" json:"kelurahan"`
	Kecamatan        string    `db:"kecamatan" json:"kecamatan"`
	Kota             string    `db:"kota" json:"kota"`
	Provinsi         string    `db:"provinsi" json:"provinsi"`
	KodePos          string    `db:"kode_pos" json:"kode_pos"`
	NoTelepon        string    `db:"no_telepon" json:"no_telepon"`
	UserID           *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// EditableFields lists resident columns a WARGA may propose changes to.
var EditableFields = []string{
	"alamat", "no_telepon", "pekerjaan", "pendidikan",
	"rt", "rw", "kelurahan", "kecamatan", "kota", "provinsi", "kode_pos",
}

// IsEditableField reports whether key is on the change request allow-list.
func IsEditableField(key string) bool {
	for _, f := range EditableFields {
		if f == key {
			return true
		}
	}
	return false
}

// field returns a pointer to the editable column named key.
func (r *Resident) field(key string) *string {
	switch key {
	case "alamat":
		return &r.Alamat
	case "no_telepon":
		return &r.NoTelepon
	case "pekerjaan":
		return &r.Pekerjaan
	case "pendidikan":
		return &r.Pendidikan
	case "rt":
		return &r.RT
	case "rw":
		return &r.RW
	case "kelurahan":
		return &r.Kelurahan
	case "kecamatan":
		return &r.Kecamatan
	case "kota":
		return &r.Kota
	case "provinsi":
		return &r.Provinsi
	case "kode_pos":
		return &r.KodePos
	}
	return nil
}

// Apply overwrites editable fields with the proposed values. Unknown keys are ignored.
func (r *Resident) Apply(changes FieldChanges) {
	for k, v := range changes {
		if p := r.field(k); p != nil {
			*p = v
		}
	}
}

// Current returns the resident's present value for each key in changes.
func (r *Resident) Current(changes FieldChanges) FieldChanges {
	out := make(FieldChanges, len(changes))
	for k := range changes {
		if p := r.field(k); p != nil {
			out[k] = *p
		}
	}
	return out
}

// Age returns whole years lived at the given instant.
func (r *Resident) Age(at time.Time) int {
	born := r.TanggalLahir
	years := at.Year() - born.Year()
	if at.Month() < born.Month() || (at.Month() == born.Month() && at.Day() < born.Day()) {
		years--
	}
	return years
}

// ResidentFilter constrains resident listings.
type ResidentFilter struct {
	Search   string
	RT       string
	RW       string
	Page     int
	PageSize int
}
