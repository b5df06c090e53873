package secretary

import "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"

var (
	ErrSecretaryNotFound = domain.NewError(domain.KindNotFound, "secretary not found")
	ErrLinkAlreadyExists = domain.NewError(domain.KindConflict, "secretary is already linked to this professional")
	ErrLinkNotFound      = domain.NewError(domain.KindNotFound, "secretary is not linked to this professional")
)
