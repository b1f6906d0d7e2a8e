// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/opencellid/cellservice/internal/schema"
)

// buildWhereClause composes a filter (mcc/mnc/geofence/radio) onto a
// squirrel select, generalized from the job-filter idiom of
// conditionally chaining .Where clauses onto a shared builder.
func buildWhereClause(filter Filter, query sq.SelectBuilder) sq.SelectBuilder {
	if filter.Mcc != nil {
		query = query.Where(sq.Eq{"mcc": *filter.Mcc})
	}
	if filter.Mnc != nil {
		query = query.Where(sq.Eq{"net": *filter.Mnc})
	}
	if filter.Radio != nil {
		query = query.Where(sq.Eq{"radio": string(*filter.Radio)})
	}
	if filter.MinLat != nil && filter.MaxLat != nil && filter.MinLon != nil && filter.MaxLon != nil {
		query = query.Where(sq.And{
			sq.GtOrEq{"lat": *filter.MinLat},
			sq.LtOrEq{"lat": *filter.MaxLat},
			sq.GtOrEq{"lon": *filter.MinLon},
			sq.LtOrEq{"lon": *filter.MaxLon},
		})
	}
	return query
}

// buildSeekPredicate implements keyset pagination over the composite
// PK order (mcc, net, area, cell, radio): the classic "seek method" OR
// of prefix-equality-then-greater-than clauses, one per PK column.
// Returns nil (no predicate) when after is nil, i.e. the first page.
func buildSeekPredicate(after *schema.PK) sq.Sqlizer {
	if after == nil {
		return nil
	}

	return sq.Or{
		sq.Gt{"mcc": after.Mcc},
		sq.And{sq.Eq{"mcc": after.Mcc}, sq.Gt{"net": after.Net}},
		sq.And{sq.Eq{"mcc": after.Mcc}, sq.Eq{"net": after.Net}, sq.Gt{"area": after.Area}},
		sq.And{sq.Eq{"mcc": after.Mcc}, sq.Eq{"net": after.Net}, sq.Eq{"area": after.Area}, sq.Gt{"cell": after.Cell}},
		sq.And{
			sq.Eq{"mcc": after.Mcc}, sq.Eq{"net": after.Net}, sq.Eq{"area": after.Area}, sq.Eq{"cell": after.Cell},
			sq.Gt{"radio": string(after.Radio)},
		},
	}
}
