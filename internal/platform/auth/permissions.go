package auth

// Application roles as stored on the backend user record. The role comes from
// GET /api/users/me, never from token claims.
const (
	RoleAdministrador = "Administrador"
	RoleAnalista      = "Analista"
	RoleCodificador   = "Codificador"
	RoleFinanzas      = "Finanzas"
)

// editableFieldsByRole is the single source of truth for per-role field edit
// rights on normalized codification records. Administrador is intentionally
// absent: it is granted the union of all sets. Unknown roles get nothing.
var editableFieldsByRole = map[string][]string{
	RoleCodificador: {
		"episodioCmbd",
		"edadAnos",
		"sexo",
		"conjuntoDx",
		"tipoActividad",
		"tipoIngreso",
		"servicioIngresoDesc",
		"servicioIngresoCod",
		"motivoEgreso",
		"medicoEgreso",
		"especialidadEgreso",
		"especialidadMedica",
		"servicioEgresoDesc",
		"servicioEgresoCod",
		"diagnosticoPrincipal",
		"proced01Principal",
		"conjuntoProcedimientosSecundarios",
		"irGrd",
		"irGrdCodigo",
		"irTipoGrd",
		"irGravedad",
		"irMortalidad",
		"irAltaInlier",
		"fechaIngresoCompleta",
		"fechaCompleta",
		"anio",
		"mes",
	},
	RoleAnalista: {
		"pesoGrdMedio",
		"pesoMedioNorma",
		"iemaIrBruto",
		"emafIrBruta",
		"impactoEstancias",
		"irPuntoCorteInferior",
		"irPuntoCorteSuperior",
		"emNorma",
		"estanciasNorma",
		"casosNorma",
		"estanciaMedia",
		"estanciaEpisodio",
		"estanciaRealEpisodio",
		"horasEstancia",
		"estanciasPrequirurgicas",
		"estanciasPostquirurgicas",
		"emPreQuirurgica",
		"emPostQuirurgica",
		"emTrasladosServicio",
		"facturacionTotal",
	},
	RoleFinanzas: {
		"validacion",
		"estadoRN",
		"diasDemora",
	},
}

// uploadRoles enumerates the roles allowed to start file imports.
var uploadRoles = map[string]bool{
	RoleAdministrador: true,
	RoleCodificador:   true,
}

// IsKnownRole reports whether role is one of the roles the backend issues.
func IsKnownRole(role string) bool {
	switch role {
	case RoleAdministrador, RoleAnalista, RoleCodificador, RoleFinanzas:
		return true
	}
	return false
}

// IsAdministrator reports whether the role carries universal edit rights.
func IsAdministrator(role string) bool {
	return role == RoleAdministrador
}

// EditableFields returns the set of record fields the role may edit.
// Administrador gets the union of every role's set. Unrecognized or empty
// roles get an empty set: permission lookups fail closed.
func EditableFields(role string) map[string]struct{} {
	set := make(map[string]struct{})
	if IsAdministrator(role) {
		for _, fields := range editableFieldsByRole {
			for _, f := range fields {
				set[f] = struct{}{}
			}
		}
		return set
	}
	for _, f := range editableFieldsByRole[role] {
		set[f] = struct{}{}
	}
	return set
}

// CanEditField reports whether the role may edit a single field.
func CanEditField(role, field string) bool {
	if IsAdministrator(role) {
		_, ok := EditableFields(RoleAdministrador)[field]
		return ok
	}
	for _, f := range editableFieldsByRole[role] {
		if f == field {
			return true
		}
	}
	return false
}

// CanUpload reports whether the role may start file imports. Fail-closed for
// roles not explicitly enumerated.
func CanUpload(role string) bool {
	return uploadRoles[role]
}
