package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/warga-api/internal/models"
)

// DateLayout is the wire format of tanggal_lahir.
const DateLayout = "2006-01-02"

// ResidentRequest is the create/update payload for a resident. The same rules are
// re-checked against a resident after an approved change request is merged into it.
type ResidentRequest struct {
	NIK              string  `json:"nik" validate:"required,nik"`
	NamaLengkap      string  `json:"nama_lengkap" validate:"required,max=255"`
	JenisKelamin     string  `json:"jenis_kelamin" validate:"required,gender"`
	TempatLahir      string  `json:"tempat_lahir" validate:"required,max=100"`
	TanggalLahir     string  `json:"tanggal_lahir" validate:"required,datetime=2006-01-02"`
	Agama            string  `json:"agama" validate:"required,religion"`
	Pendidikan       string  `json:"pendidikan" validate:"max=50"`
	Pekerjaan        string  `json:"pekerjaan" validate:"max=100"`
	StatusPerkawinan string  `json:"status_perkawinan" validate:"required,marital"`
	Alamat           string  `json:"alamat" validate:"required"`
	RT               string  `json:"rt" validate:"required,max=3"`
	RW               string  `json:"rw" validate:"required,max=3"`
	Kelurahan        string  `json:"kelurahan" validate:"required,max=100"`
	Kecamatan        string  `json:"kecamatan" validate:"required,max=100"`
	Kota             string  `json:"kota" validate:"required,max=100"`
	Provinsi         string  `json:"provinsi" validate:"required,max=100"`
	KodePos          string  `json:"kode_pos" validate:"max=5"`
	NoTelepon        string  `json:"no_telepon" validate:"max=15"`
	UserID           *string `json:"user_id" validate:"omitempty,uuid"`
}

// Normalize trims every string field.
func (r *ResidentRequest) Normalize() {
	for _, p := range []*string{
		&r.NIK, &r.NamaLengkap, &r.JenisKelamin, &r.TempatLahir, &r.TanggalLahir, &r.Agama, &r.Pendidikan,
		&r.Pekerjaan, &r.StatusPerkawinan, &r.Alamat, &r.RT, &r.RW, &r.Kelurahan, &r.Kecamatan, &r.Kota,
		&r.Provinsi, &r.KodePos, &r.NoTelepon,
	} {
		*p = strings.TrimSpace(*p)
	}
	if r.UserID != nil {
		id := strings.TrimSpace(*r.UserID)
		if id == "" {
			r.UserID = nil
		} else {
			r.UserID = &id
		}
	}
}

// ApplyTo copies the payload onto a resident. tanggal_lahir must already be validated.
func (r ResidentRequest) ApplyTo(res *models.Resident) {
	born, _ := time.Parse(DateLayout, r.TanggalLahir)
	res.NIK = r.NIK
	res.NamaLengkap = r.NamaLengkap
	res.JenisKelamin = r.JenisKelamin
	res.TempatLahir = r.TempatLahir
	res.TanggalLahir = born
	res.Agama = r.Agama
	res.Pendidikan = r.Pendidikan
	res.Pekerjaan = r.Pekerjaan
	res.StatusPerkawinan = r.StatusPerkawinan
	res.Alamat = r.Alamat
	res.RT = r.RT
	res.RW = r.RW
	res.Kelurahan = r.Kelurahan
	res.Kecamatan = r.Kecamatan
	res.Kota = r.Kota
	res.Provinsi = r.Provinsi
	res.KodePos = r.KodePos
	res.NoTelepon = r.NoTelepon
	res.UserID = r.UserID
}

// ResidentRequestFrom builds a payload mirroring an existing resident.
func ResidentRequestFrom(res models.Resident) ResidentRequest {
	return ResidentRequest{
		NIK:              res.NIK,
		NamaLengkap:      res.NamaLengkap,
		JenisKelamin:     res.JenisKelamin,
		TempatLahir:      res.TempatLahir,
		TanggalLahir:     res.TanggalLahir.Format(DateLayout),
		Agama:            res.Agama,
		Pendidikan:       res.Pendidikan,
		Pekerjaan:        res.Pekerjaan,
		StatusPerkawinan: res.StatusPerkawinan,
		Alamat:           res.Alamat,
		RT:               res.RT,
		RW:               res.RW,
		Kelurahan:        res.Kelurahan,
		Kecamatan:        res.Kecamatan,
		Kota:             res.Kota,
		Provinsi:         res.Provinsi,
		KodePos:          res.KodePos,
		NoTelepon:        res.NoTelepon,
		UserID:           res.UserID,
	}
}

// ResidentQuery mirrors supported listing filters.
type ResidentQuery struct {
	Search string `form:"search"`
	RT     string `form:"rt"`
	RW     string `form:"rw"`
	Page   int    `form:"page"`
}
