package picker

// NoticeLevel is how prominently a notice is shown.
type NoticeLevel string

const (
	LevelInfo    NoticeLevel = "info"
	LevelWarning NoticeLevel = "warning"
	LevelError   NoticeLevel = "error"
)

const (
	msgEmptyQuery      = "Completá la dirección antes de buscarla en el mapa."
	msgAddressNotFound = "No encontramos esa dirección."
	msgAddressOutside  = "La dirección encontrada está fuera de Argentina."
	msgPinNotFound     = "No encontramos una dirección para esa ubicación."
	msgPinOutside      = "El marcador quedó fuera de Argentina."
	msgBadCoordinate   = "Coordenadas inválidas."
	msgSuperseded      = "Moviste el marcador mientras se buscaba; se mantuvo tu ubicación."
	msgCancelled       = "La búsqueda se canceló."
	msgUnavailable     = "El servicio de mapas no está disponible. Probá de nuevo más tarde."
)

// Notice is a transient, user-visible message about a sync that did not
// change the form. It never affects map state.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

func (n *Notice) Error() string {
	if n.Err != nil {
		return n.Message + ": " + n.Err.Error()
	}
	return n.Message
}

func (n *Notice) Unwrap() error { return n.Err }
