// Package docs holds the OpenAPI document served under /api/swagger.
// It mirrors the @-annotations on the handlers in internal/server; refresh it
// with `swag init -g cmd/server/main.go -o docs` after changing them.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"license": {
			"name": "MIT",
			"url": "https://opensource.org/licenses/MIT"
		},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/auth/login": {
			"post": {
				"description": "Authenticate with username and password and start a session",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "User login",
				"parameters": [
					{
						"description": "Login credentials",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.loginRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"token": {
													"type": "string"
												},
												"user": {
													"$ref": "#/definitions/models.User"
												}
											}
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/auth/logout": {
			"post": {
				"description": "Destroy the session and revoke the presented bearer token",
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Logout",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/auth/register": {
			"post": {
				"description": "Create an account and start a session",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "User registration",
				"parameters": [
					{
						"description": "Registration request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.registerRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"token": {
													"type": "string"
												},
												"user": {
													"$ref": "#/definitions/models.User"
												}
											}
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/auth/token": {
			"post": {
				"description": "Returns a JWT for API clients that cannot keep the session cookie",
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Issue a bearer token",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"token": {
													"type": "string"
												}
											}
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/auth/verify": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Current user",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"user": {
													"$ref": "#/definitions/models.User"
												}
											}
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/comments": {
			"post": {
				"description": "Set parentCommentId to reply to another comment on the same post",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"comments"
				],
				"summary": "Comment on a post",
				"parameters": [
					{
						"description": "Comment",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.createCommentRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"comment": {
													"$ref": "#/definitions/models.Comment"
												}
											}
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/comments/post/{postId}": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"comments"
				],
				"summary": "Top-level comments of a post",
				"parameters": [
					{
						"type": "string",
						"description": "Post ID",
						"name": "postId",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"description": "Page size (max 100)",
						"name": "limit",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Items to skip",
						"name": "skip",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"comments": {
													"type": "array",
													"items": {
														"$ref": "#/definitions/models.Comment"
													}
												}
											}
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/comments/{commentId}": {
			"put": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"comments"
				],
				"summary": "Edit own comment",
				"parameters": [
					{
						"type": "string",
						"description": "Comment ID",
						"name": "commentId",
						"in": "path",
						"required": true
					},
					{
						"description": "New content",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.updateCommentRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"comment": {
													"$ref": "#/definitions/models.Comment"
												}
											}
										}
									}
								}
							]
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			},
			"delete": {
				"description": "Direct replies are deleted with it",
				"produces": [
					"application/json"
				],
				"tags": [
					"comments"
				],
				"summary": "Delete own comment",
				"parameters": [
					{
						"type": "string",
						"description": "Comment ID",
						"name": "commentId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/comments/{commentId}/like": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"comments"
				],
				"summary": "Like a comment",
				"parameters": [
					{
						"type": "string",
						"description": "Comment ID",
						"name": "commentId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"comment": {
													"$ref": "#/definitions/models.Comment"
												}
											}
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			},
			"delete": {
				"produces": [
					"application/json"
				],
				"tags": [
					"comments"
				],
				"summary": "Remove a comment like",
				"parameters": [
					{
						"type": "string",
						"description": "Comment ID",
						"name": "commentId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"comment": {
													"$ref": "#/definitions/models.Comment"
												}
											}
										}
									}
								}
							]
						}
					}
				}
			}
		},
		"/comments/{commentId}/replies": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"comments"
				],
				"summary": "Direct replies to a comment",
				"parameters": [
					{
						"type": "string",
						"description": "Comment ID",
						"name": "commentId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"replies": {
													"type": "array",
													"items": {
														"$ref": "#/definitions/models.Comment"
													}
												}
											}
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/feature-flags": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"meta"
				],
				"summary": "Feature flags",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/posts": {
			"post": {
				"description": "Hashtags are extracted from the content",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Publish a post",
				"parameters": [
					{
						"description": "Post",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.createPostRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"post": {
													"$ref": "#/definitions/models.Post"
												}
											}
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/posts/hashtag/{hashtag}": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Posts by hashtag",
				"parameters": [
					{
						"type": "string",
						"description": "Tag, with or without #",
						"name": "hashtag",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"posts": {
													"type": "array",
													"items": {
														"$ref": "#/definitions/models.Post"
													}
												}
											}
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/posts/timeline": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Home timeline",
				"parameters": [
					{
						"type": "integer",
						"description": "Page size (max 100)",
						"name": "limit",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Items to skip",
						"name": "skip",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"posts": {
													"type": "array",
													"items": {
														"$ref": "#/definitions/models.Post"
													}
												}
											}
										}
									}
								}
							]
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/posts/user/{username}": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Posts by a user",
				"parameters": [
					{
						"type": "string",
						"description": "Username",
						"name": "username",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"posts": {
													"type": "array",
													"items": {
														"$ref": "#/definitions/models.Post"
													}
												}
											}
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/posts/{postId}": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Get a post",
				"parameters": [
					{
						"type": "string",
						"description": "Post ID",
						"name": "postId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"post": {
													"$ref": "#/definitions/models.Post"
												}
											}
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			},
			"put": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Edit own post",
				"parameters": [
					{
						"type": "string",
						"description": "Post ID",
						"name": "postId",
						"in": "path",
						"required": true
					},
					{
						"description": "Fields to change",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.updatePostRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"post": {
													"$ref": "#/definitions/models.Post"
												}
											}
										}
									}
								}
							]
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			},
			"delete": {
				"description": "Also removes the post's likes, retweets and comments",
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Delete own post",
				"parameters": [
					{
						"type": "string",
						"description": "Post ID",
						"name": "postId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/posts/{postId}/like": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Like a post",
				"parameters": [
					{
						"type": "string",
						"description": "Post ID",
						"name": "postId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"post": {
													"$ref": "#/definitions/models.Post"
												}
											}
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			},
			"delete": {
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Remove a like",
				"parameters": [
					{
						"type": "string",
						"description": "Post ID",
						"name": "postId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"post": {
													"$ref": "#/definitions/models.Post"
												}
											}
										}
									}
								}
							]
						}
					}
				}
			}
		},
		"/posts/{postId}/retweet": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Retweet a post",
				"parameters": [
					{
						"type": "string",
						"description": "Post ID",
						"name": "postId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"post": {
													"$ref": "#/definitions/models.Post"
												}
											}
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			},
			"delete": {
				"produces": [
					"application/json"
				],
				"tags": [
					"posts"
				],
				"summary": "Undo a retweet",
				"parameters": [
					{
						"type": "string",
						"description": "Post ID",
						"name": "postId",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"post": {
													"$ref": "#/definitions/models.Post"
												}
											}
										}
									}
								}
							]
						}
					}
				}
			}
		},
		"/users": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"users"
				],
				"summary": "List users",
				"parameters": [
					{
						"type": "integer",
						"description": "Page size (max 100)",
						"name": "limit",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Items to skip",
						"name": "skip",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"users": {
													"type": "array",
													"items": {
														"$ref": "#/definitions/models.User"
													}
												}
											}
										}
									}
								}
							]
						}
					}
				}
			}
		},
		"/users/profile": {
			"put": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"users"
				],
				"summary": "Update own profile",
				"parameters": [
					{
						"description": "Fields to change",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.updateProfileRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"user": {
													"$ref": "#/definitions/models.User"
												}
											}
										}
									}
								}
							]
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/users/{username}": {
			"get": {
				"description": "Public profile; isFollowing is set when a viewer is logged in",
				"produces": [
					"application/json"
				],
				"tags": [
					"users"
				],
				"summary": "User profile",
				"parameters": [
					{
						"type": "string",
						"description": "Username",
						"name": "username",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"allOf": [
								{
									"$ref": "#/definitions/models.Response"
								},
								{
									"type": "object",
									"properties": {
										"data": {
											"type": "object",
											"properties": {
												"user": {
													"$ref": "#/definitions/models.Profile"
												}
											}
										}
									}
								}
							]
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		},
		"/users/{username}/follow": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"users"
				],
				"summary": "Follow a user",
				"parameters": [
					{
						"type": "string",
						"description": "Username to follow",
						"name": "username",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			},
			"delete": {
				"produces": [
					"application/json"
				],
				"tags": [
					"users"
				],
				"summary": "Unfollow a user",
				"parameters": [
					{
						"type": "string",
						"description": "Username to unfollow",
						"name": "username",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.Response"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"models.Comment": {
			"type": "object",
			"properties": {
				"content": {
					"type": "string"
				},
				"createdAt": {
					"type": "string"
				},
				"id": {
					"type": "string"
				},
				"likes": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"parentCommentId": {
					"type": "string"
				},
				"postId": {
					"type": "string"
				},
				"profileImage": {
					"type": "string"
				},
				"updatedAt": {
					"type": "string"
				},
				"userId": {
					"type": "string"
				},
				"username": {
					"type": "string"
				}
			}
		},
		"models.Post": {
			"type": "object",
			"properties": {
				"commentsCount": {
					"type": "integer"
				},
				"content": {
					"type": "string"
				},
				"createdAt": {
					"type": "string"
				},
				"hashtags": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"id": {
					"type": "string"
				},
				"likes": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"media": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"retweets": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"updatedAt": {
					"type": "string"
				},
				"userId": {
					"type": "string"
				},
				"username": {
					"type": "string"
				}
			}
		},
		"models.Profile": {
			"type": "object",
			"properties": {
				"bio": {
					"type": "string"
				},
				"createdAt": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"followers": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"following": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"id": {
					"type": "string"
				},
				"isFollowing": {
					"type": "boolean"
				},
				"profileImage": {
					"type": "string"
				},
				"updatedAt": {
					"type": "string"
				},
				"username": {
					"type": "string"
				}
			}
		},
		"models.Response": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"data": {},
				"message": {
					"type": "string"
				},
				"success": {
					"type": "boolean"
				}
			}
		},
		"models.User": {
			"type": "object",
			"properties": {
				"bio": {
					"type": "string"
				},
				"createdAt": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"followers": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"following": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"id": {
					"type": "string"
				},
				"profileImage": {
					"type": "string"
				},
				"updatedAt": {
					"type": "string"
				},
				"username": {
					"type": "string"
				}
			}
		},
		"server.createCommentRequest": {
			"type": "object",
			"properties": {
				"content": {
					"type": "string"
				},
				"parentCommentId": {
					"type": "string"
				},
				"postId": {
					"type": "string"
				}
			}
		},
		"server.createPostRequest": {
			"type": "object",
			"properties": {
				"content": {
					"type": "string"
				},
				"media": {
					"type": "array",
					"items": {
						"type": "string"
					}
				}
			}
		},
		"server.loginRequest": {
			"type": "object",
			"properties": {
				"password": {
					"type": "string"
				},
				"username": {
					"type": "string"
				}
			}
		},
		"server.registerRequest": {
			"type": "object",
			"properties": {
				"bio": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"profileImage": {
					"type": "string"
				},
				"username": {
					"type": "string"
				}
			}
		},
		"server.updateCommentRequest": {
			"type": "object",
			"properties": {
				"content": {
					"type": "string"
				}
			}
		},
		"server.updatePostRequest": {
			"type": "object",
			"properties": {
				"content": {
					"type": "string"
				},
				"media": {
					"type": "array",
					"items": {
						"type": "string"
					}
				}
			}
		},
		"server.updateProfileRequest": {
			"type": "object",
			"properties": {
				"bio": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"profileImage": {
					"type": "string"
				},
				"username": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and JWT token.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:3000",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "chirp API",
	Description:      "Microblogging API with posts, comments, likes, follows and hashtags",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
